package planner

import (
	"fmt"
	"strings"

	"github.com/BaSui01/flowrunner/workflow/action"
)

const planningRules = `**Rules:**
- Output MUST be valid JSON.
- The root object must have: "workflow_name", "nodes" (array), "execution_order" (array of node IDs).
- Each node must have: "id" (unique string), "action" (one of the available types), "params" (object), "depends_on" (array of IDs).
- Ensure the "execution_order" is a valid topological sort.
- For 'ai_processor', strictly define the 'instruction' param.
- For 'web_scraper', strictly define the 'url' param.`

const planningExample = `**Example Input:**
"Every morning scrape techcrunch and email me a summary"

**Example Output:**
{
  "workflow_name": "Daily TechCrunch Summary",
  "nodes": [
    {
      "id": "trigger_1",
      "action": "scheduler",
      "params": { "cron": "0 8 * * *", "description": "Every morning at 8am" },
      "depends_on": []
    },
    {
      "id": "scraper_1",
      "action": "web_scraper",
      "params": { "url": "https://techcrunch.com" },
      "depends_on": ["trigger_1"]
    },
    {
      "id": "ai_1",
      "action": "ai_processor",
      "params": { "instruction": "Summarize the following tech news headlines into a bulleted list." },
      "depends_on": ["scraper_1"]
    },
    {
      "id": "email_1",
      "action": "email_sender",
      "params": { "recipient": "user@example.com", "subject": "Daily Tech News" },
      "depends_on": ["ai_1"]
    }
  ],
  "execution_order": ["trigger_1", "scraper_1", "ai_1", "email_1"]
}`

// SystemPrompt builds the planning instruction from the action catalog.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an expert AI workflow architect. ")
	b.WriteString("Your goal is to convert a user's natural language request into a strictly structured JSON execution plan.\n\n")
	b.WriteString("**Available Action Blocks:**\n")
	for i, d := range action.Catalog() {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, d.Type, d.Description)
	}
	b.WriteString("\n")
	b.WriteString(planningRules)
	b.WriteString("\n\n")
	b.WriteString(planningExample)
	b.WriteString("\n")
	return b.String()
}

// UserPrompt wraps the user's request.
func UserPrompt(request string) string {
	return "User Request: " + request
}
