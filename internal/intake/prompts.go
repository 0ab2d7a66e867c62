package intake

import (
	"fmt"
	"strings"

	"github.com/complaintdesk/intake-engine/internal/classify"
)

// Canonical-language prompt texts. Responses localize them into the
// session's detected language before they leave the engine.
const (
	promptIntro = "Hello! Please describe your complaint and I will help you file it."

	promptDescribe = "Please describe your complaint."

	promptLowConfidence = "I am not fully sure what this complaint is about. Please choose the closest match:"

	promptManualChoice = "I could not classify your complaint automatically. Please choose a category:"

	promptChoiceRetry = "Please reply with the number or name of one of these categories:"

	promptChangeWhat = "Okay, what would you like to change? Send a corrected description, or edit a single field."

	promptCancelled = "Your complaint has been cancelled. Nothing was filed."

	promptFiled = "Your complaint has been filed. Your reference number is %s. Please keep it for follow-up."

	promptCurrentFirst = "Let's finish the current question first. %s"

	promptUnknownField = "%q is not part of this complaint. Fields you can edit: %s."

	empathyPrefix = "I am sorry to hear that. "
)

// renderChoices numbers candidates for manual selection.
func renderChoices(cands []classify.Candidate) string {
	var b strings.Builder
	for i, c := range cands {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s / %s", i+1, c.Category, c.SubCategory)
	}
	return b.String()
}

// renderSummary is the confirmation prompt body.
func renderSummary(sum *DraftSummary) string {
	var b strings.Builder
	b.WriteString("Here is your complaint so far:\n")
	fmt.Fprintf(&b, "Category: %s / %s\n", sum.Category, sum.SubCategory)
	for _, fv := range sum.Fields {
		fmt.Fprintf(&b, "%s: %s\n", fv.Name, fv.Value)
	}
	fmt.Fprintf(&b, "Description: %s\n", sum.Narrative)
	if sum.Attachment != nil {
		fmt.Fprintf(&b, "Attachment: %s (%s)\n", sum.Attachment.ID, sum.Attachment.MimeType)
	}
	b.WriteString(`Reply "yes" to file it, "no" to change something, or "cancel" to abandon it.`)
	return b.String()
}
