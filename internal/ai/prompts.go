package ai

// SystemPrompts contains the system-level instructions for AI interactions
type SystemPrompts struct {
	SummarizeJob string
	ProposeEdit  string
}

// UserPrompts contains user-level prompts with placeholders for dynamic content
type UserPrompts struct {
	SummarizeJob string
	ProposeEdit  string
}

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = SystemPrompts{
	SummarizeJob: `You are an expert recruiter and requirements analyst. Your task is to read a job description and extract a precise, normalized requirement summary. Your principles:

- Extract only requirements actually stated or strongly implied by the posting
- Distinguish hard requirements (must-have) from preferences (nice-to-have)
- Normalize skill names to their canonical short form ("Kubernetes", not "experience with Kubernetes clusters")
- Assign each extracted keyword a relevance weight between 0 and 1
- Judge the seniority level from title, required years, and scope of responsibility`,

	ProposeEdit: `You are an expert resume writer with a strict commitment to honesty. You write a single resume line at a time. Your principles:

- NEVER invent experience, metrics, employers, or accomplishments
- Phrase the line so it is plausible for the given role and seniority without asserting unverifiable specifics
- Use strong action verbs and keep the line under 30 words
- When reworking an existing line, preserve its factual claims and only weave in the requested terminology`,
}

// DefaultUserPrompts provides the default user prompt templates
var DefaultUserPrompts = UserPrompts{
	SummarizeJob: `Extract a requirement summary from the job description below.

Report:
1. Must-have skills: technologies and competencies the posting treats as required.
2. Nice-to-have skills: items listed as preferred, a plus, or bonus.
3. Seniority level: one of "junior", "mid", "senior", "staff+".
4. Keyword weights: for every reported skill, a relevance weight in [0,1] reflecting how central it is to the role.

**Job Description:**
-----
%s
-----`,

	ProposeEdit: `Write one resume line for the situation below.

Operation: %s
Skill or theme to cover: %s
Target seniority: %s
Section: %s
Role / entry: %s
Existing line (empty for a new line): %s

Return the line and a one-sentence rationale explaining how it addresses the skill without overclaiming.`,
}

// strictAddendum is appended to the system prompt on the single repair
// retry after a schema-violating response.
const strictAddendum = `

IMPORTANT: your previous response did not conform to the required JSON schema. Respond with ONLY a JSON object that exactly matches the response schema. No prose, no markdown fences, no additional keys.`
