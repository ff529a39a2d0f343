package verification

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// buildTimeout caps any build command run during verification.
const buildTimeout = 5 * time.Minute

// projectBuildCommands maps project marker files to the build command
// used when the user did not supply one.
var projectBuildCommands = []struct {
	marker  string
	command []string
}{
	{"package.json", []string{"npm", "run", "build"}},
	{"Makefile", []string{"make"}},
	{"Cargo.toml", []string{"cargo", "build"}},
	{"go.mod", []string{"go", "build", "./..."}},
}

// VerifyBuild checks that the working tree still builds after an
// intent is applied. With no explicit command it checks Go syntax when
// the tree has Go files, then tries the first build command whose
// project marker exists. A repository with no recognizable build is a
// pass: absence of a build system is not a split failure.
func (v *Verifier) VerifyBuild(ctx context.Context, buildCommand string) (bool, string) {
	if buildCommand != "" {
		return v.runBuild(ctx, strings.Fields(buildCommand))
	}

	if ok, output, checked := v.checkGoSyntax(); checked {
		if !ok {
			return false, output
		}
	}

	for _, pb := range projectBuildCommands {
		if _, err := os.Stat(filepath.Join(v.git.RepoPath(), pb.marker)); err != nil {
			continue
		}
		return v.runBuild(ctx, pb.command)
	}

	return true, "No build command found - skipping build verification"
}

func (v *Verifier) runBuild(ctx context.Context, args []string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	logging.Verify("Running build verification: %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = v.git.RepoPath()
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return false, "Build timed out"
	}
	if err != nil {
		return false, string(output)
	}
	return true, string(output)
}

// checkGoSyntax parses every Go file in the repository. The third
// return is false when the tree has no Go files at all.
func (v *Verifier) checkGoSyntax() (bool, string, bool) {
	var errors []string
	found := false

	root := v.git.RepoPath()
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}

		found = true
		src, readErr := os.ReadFile(path)
		if readErr != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", name, readErr))
			return nil
		}
		fset := token.NewFileSet()
		if _, parseErr := parser.ParseFile(fset, path, src, 0); parseErr != nil {
			errors = append(errors, parseErr.Error())
		}
		return nil
	})

	if !found {
		return true, "", false
	}
	if len(errors) > 0 {
		return false, "Go syntax errors:\n" + strings.Join(errors, "\n"), true
	}
	return true, "Go syntax check passed", true
}
