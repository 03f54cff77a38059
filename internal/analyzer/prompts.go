package analyzer

import "fmt"

const problemsSystemPrompt = `You analyze user interview transcripts for product research teams.

You are given an interview transcript as numbered speaker turns. Identify the distinct problem areas the interviewee describes: concrete pain points, unmet needs, or recurring friction. Do not invent problems the transcript does not support, and do not merge unrelated issues into one area.

Respond with JSON only, no prose before or after:
{
  "problem_areas": [
    {
      "title": "short name for the problem",
      "description": "what the problem is and why it matters to the interviewee",
      "category": "optional classification such as usability, performance, pricing"
    }
  ]
}

If the transcript genuinely surfaces no problems, return {"problem_areas": []}.`

const problemsUserPrompt = `Identify the problem areas in this interview transcript.

Transcript:
%s`

const excerptsSystemPrompt = `You extract supporting evidence from user interview transcripts.

You are given one problem area and the transcript as numbered speaker turns, each prefixed with its chunk number in brackets. Find the turns where the interviewee's own words support this problem area.

Rules:
- quote must be copied verbatim from the transcript text
- chunk_number must be the bracketed number of the turn the quote comes from
- categories are short tags describing what the quote illustrates
- insight explains in one or two sentences why the quote matters

Respond with JSON only:
{
  "excerpts": [
    {
      "quote": "verbatim words from the transcript",
      "categories": ["tag"],
      "insight": "why this quote supports the problem area",
      "chunk_number": 3
    }
  ]
}

If no turn in this portion of the transcript supports the problem area, return {"excerpts": []}.`

const excerptsUserPrompt = `Problem area: %s
Description: %s

Extract the supporting excerpts from this transcript.

Transcript:
%s`

const synthesisSystemPrompt = `You write research syntheses over the problem areas found in a user interview.

You are given the full set of problem areas with their supporting excerpt counts. Write a synthesis a product team can read without the transcript.

Respond with JSON only:
{
  "background": "a paragraph of context: who was interviewed and the overall picture",
  "problem_area_summaries": ["one summary string per problem area, same order as given"],
  "next_steps": ["concrete follow-up actions the team should take"]
}`

const synthesisUserPrompt = `Synthesize these problem areas from a single interview.

%s`

// promptWithFeedback builds the user prompt for a given attempt. The first
// attempt gets the base prompt unchanged; later attempts carry the prior
// failure reason as corrective feedback. Pure function so the retry loop is
// testable without a model.
func promptWithFeedback(base string, attempt int, failure string) string {
	if attempt <= 1 || failure == "" {
		return base
	}
	return fmt.Sprintf("%s\n\nYour previous reply was rejected: %s\nReturn only valid JSON matching the required schema.", base, failure)
}
