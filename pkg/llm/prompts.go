package llm

const extractSystemPrompt = "You extract entities from text for a personal assistant memory graph. " +
	"Return a bullet list; each line: '- <name> (<type>)'. Types: Person, Project, Goal, Task, Tool, Org, Place. " +
	"Only include entities explicitly mentioned."

const judgeSystemPrompt = "You are a strict verifier. Decide if the ANSWER satisfies the GOAL using only CONTEXT. " +
	"Output exactly: PASS or FAIL on first line. Then short notes. " +
	"If FAIL, list what to fix."

const intentSystemPrompt = "You classify retrieval queries for a code-aware memory graph. " +
	"Given the query and optionally the file the user is working in, decide how many import-graph hops " +
	"to traverse (1-4) and a context token budget (500-4000). " +
	`Return ONLY JSON: {"hops": <int>, "token_budget": <int>}`
