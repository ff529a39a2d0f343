package logging

// Convenience wrappers so call sites read as logging.Patch(...) instead
// of logging.Get(logging.CategoryPatch).Info(...).

// Session logs to the session category at info level.
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs to the session category at debug level.
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// Diff logs to the diff category at info level.
func Diff(format string, args ...interface{}) { Get(CategoryDiff).Info(format, args...) }

// DiffDebug logs to the diff category at debug level.
func DiffDebug(format string, args ...interface{}) { Get(CategoryDiff).Debug(format, args...) }

// Patch logs to the patch category at info level.
func Patch(format string, args ...interface{}) { Get(CategoryPatch).Info(format, args...) }

// PatchDebug logs to the patch category at debug level.
func PatchDebug(format string, args ...interface{}) { Get(CategoryPatch).Debug(format, args...) }

// Git logs to the git category at info level.
func Git(format string, args ...interface{}) { Get(CategoryGit).Info(format, args...) }

// GitDebug logs to the git category at debug level.
func GitDebug(format string, args ...interface{}) { Get(CategoryGit).Debug(format, args...) }

// Oracle logs to the oracle category at info level.
func Oracle(format string, args ...interface{}) { Get(CategoryOracle).Info(format, args...) }

// OracleDebug logs to the oracle category at debug level.
func OracleDebug(format string, args ...interface{}) { Get(CategoryOracle).Debug(format, args...) }

// Verify logs to the verify category at info level.
func Verify(format string, args ...interface{}) { Get(CategoryVerify).Info(format, args...) }

// VerifyDebug logs to the verify category at debug level.
func VerifyDebug(format string, args ...interface{}) { Get(CategoryVerify).Debug(format, args...) }

// Engine logs to the engine category at info level.
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs to the engine category at debug level.
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// Store logs to the store category at info level.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs to the store category at debug level.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
