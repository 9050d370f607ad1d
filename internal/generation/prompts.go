package generation

import (
	"fmt"
	"strings"
)

func articlePrompt(lang, topic, facts string, keywords []string, minWords int) string {
	var b strings.Builder
	if lang == "hi" {
		fmt.Fprintf(&b, "आप %s के विशेषज्ञ तकनीकी लेखक हैं। नीचे दिए गए डेटा के आधार पर हिंदी में एक व्यावहारिक मार्गदर्शिका लिखें।\n", topic)
		fmt.Fprintf(&b, "मुख्य शब्द: %s\n", strings.Join(keywords, ", "))
		fmt.Fprintf(&b, "कम से कम %d शब्द। पहली पंक्ति में H1 शीर्षक दें।\n", minWords)
	} else {
		fmt.Fprintf(&b, "You are an expert technical writer on %s. Write a practical, easy to follow guide in English from the data below.\n", topic)
		fmt.Fprintf(&b, "Target keywords: %s\n", strings.Join(keywords, ", "))
		fmt.Fprintf(&b, "Write at least %d words. Put an H1 title on the first line. Use H2 sections, numbered steps, and bullet lists.\n", minWords)
	}
	b.WriteString("---\n")
	b.WriteString(facts)
	b.WriteString("\n---\n")
	return b.String()
}

func imagePromptsPrompt(body string) string {
	return "From the article below, pick 3 to 5 concepts that would benefit from an illustration. " +
		"For each, write a 10 to 15 word text-to-image prompt. " +
		`Return a JSON list of objects with "concept" and "prompt" keys.` + "\n\nArticle:\n" + body
}

func videoScriptPrompt(lang, body string, maxSeconds int) string {
	return fmt.Sprintf("Summarize the article below into a narration script of at most %d seconds in %s. "+
		"Use short, simple sentences suitable for voice over. Return only the script text.\n\nArticle:\n%s",
		maxSeconds, lang, body)
}
