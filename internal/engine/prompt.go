package engine

import (
	"fmt"

	"github.com/huangang/codecritic/internal/models"
)

const SystemPrompt = `You are an expert code reviewer. Analyze the provided code and provide a structured review including:
1. A code quality score from 1-10
2. Specific issues found with suggestions for improvement
3. Any security concerns
4. Performance recommendations
5. A summary of your assessment

Format your response as JSON with the following structure and no other text:
{
    "quality_score": 7,
    "feedback": [
        {
            "issue": "Issue description",
            "suggestion": "Suggestion for improvement",
            "severity": "high/medium/low"
        }
    ],
    "security_concerns": ["Security issue 1", "Security issue 2"],
    "performance_recommendations": ["Performance suggestion 1", "Performance suggestion 2"],
    "summary": "Overall summary of the code review"
}
Use empty arrays when there is nothing to report.`

// BuildUserPrompt renders the per-review message sent alongside SystemPrompt.
func BuildUserPrompt(code string, language models.Language) string {
	return fmt.Sprintf("Please review the following %s code:\n\n%s", language, code) + LanguageHints(language)
}
