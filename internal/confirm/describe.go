package confirm

import "fmt"

// maxScriptPreview bounds the eval description preview to 80 characters.
const maxScriptPreview = 80

// DescribeNavigate formats the human-readable description for a
// confirmation gating a navigation action.
func DescribeNavigate(url string) string {
	return fmt.Sprintf("Navigate to %s", url)
}

// DescribeEval formats the description for a confirmation gating script
// evaluation, truncating the script to a preview.
func DescribeEval(script string) string {
	preview := script
	truncated := false
	if r := []rune(preview); len(r) > maxScriptPreview {
		preview = string(r[:maxScriptPreview])
		truncated = true
	}
	if truncated {
		return fmt.Sprintf("Evaluate script: %s…", preview)
	}
	return fmt.Sprintf("Evaluate script: %s", preview)
}

// DescribeSelectorAction formats the description for confirmations gating
// actions that target an element by ref or selector (click, fill, …).
func DescribeSelectorAction(verb, selector string) string {
	return fmt.Sprintf("%s %s", verb, selector)
}

// DescribeGeneric is the fallback formatter for categories without a
// dedicated one above.
func DescribeGeneric(verb string) string {
	return verb
}
