package engine

import (
	"strings"

	"github.com/huangang/codecritic/internal/models"
)

// languageHints maps each supported language to specific review focus points.
var languageHints = map[models.Language]string{
	models.LanguageGo: `Go-specific checks:
- Check for unhandled errors (err != nil patterns)
- Verify proper defer/close usage for resources
- Check goroutine leaks and race conditions
- Ensure proper context.Context propagation
- Validate struct tag correctness`,

	models.LanguagePython: `Python-specific checks:
- Check for proper exception handling (avoid bare except)
- Verify type hints consistency
- Check for mutable default arguments
- Validate proper resource cleanup (with statements)
- Check for potential injection vulnerabilities in string formatting`,

	models.LanguageJavaScript: `JavaScript-specific checks:
- Check for potential XSS vulnerabilities
- Verify proper async/await and Promise error handling
- Check for memory leaks (event listeners, intervals)
- Validate proper null/undefined checks`,

	models.LanguageTypeScript: `TypeScript-specific checks:
- Check for proper type safety (avoid 'any')
- Verify proper async/await and Promise error handling
- Validate strict null checks and narrowing
- Check for unused imports and variables`,

	models.LanguageJava: `Java-specific checks:
- Check for proper exception handling and resource management (try-with-resources)
- Verify null safety (Optional usage, @Nullable annotations)
- Check for thread safety issues
- Check for potential SQL injection in query construction`,

	models.LanguageCSharp: `C#-specific checks:
- Verify IDisposable objects are released (using statements)
- Check async/await usage (avoid async void, blocking on .Result)
- Validate null handling with nullable reference types
- Check LINQ queries for repeated enumeration`,

	models.LanguageRust: `Rust-specific checks:
- Check for proper error handling (Result/Option usage)
- Verify ownership and borrowing patterns
- Check for unsafe blocks necessity
- Check for potential panics (unwrap usage)`,

	models.LanguageCPP: `C++-specific checks:
- Check for memory leaks and smart pointer usage
- Verify RAII patterns for resource management
- Check for buffer overflows and bounds checking
- Check for undefined behavior`,
}

// LanguageHints returns the prompt section with review guidance for language,
// or "" when the language has none.
func LanguageHints(language models.Language) string {
	hint, ok := languageHints[language]
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n--- Language-Specific Review Guidelines ---\n")
	b.WriteString(hint)
	b.WriteString("\n")
	return b.String()
}
