package insight

import "fmt"

func timelinePrompt(transcript string, segments int) string {
	return fmt.Sprintf(`Analyze this meeting transcript and produce a minute-by-minute timeline.
Divide the content into %d one-minute segments.

Return ONLY valid JSON with this exact structure, no prose:
{
  "timeline": [
    {
      "minute": 1,
      "summary": "what happened in this minute",
      "key_points": ["point"],
      "decisions": ["decision made in this minute"],
      "action_items": ["action item raised in this minute"],
      "speakers": ["speaker name if identifiable"],
      "topics": ["topic"]
    }
  ],
  "overall_summary": "2-3 sentence summary of the whole meeting",
  "key_decisions": ["decision"],
  "action_items": ["action item"],
  "participants": ["name"],
  "meeting_type": "standup|planning|review|discussion|other",
  "next_steps": ["next step"],
  "blockers": ["blocker"],
  "success_metrics": ["metric"]
}

Transcript:
%s`, segments, transcript)
}

func tasksPrompt(transcript string) string {
	return fmt.Sprintf(`Extract every actionable task from this meeting transcript.

For each task capture who owns it, how urgent it is, roughly how much work it
is, and any deadline that was mentioned. Keep deadline expressions exactly as
spoken ("Friday", "next Monday", "end of the week") or as an ISO date.

Return ONLY a valid JSON array, no prose:
[
  {
    "task": "short imperative task name",
    "description": "one or two sentences of detail",
    "owner": "person responsible, empty string if unassigned",
    "priority": "high|medium|low",
    "category": "work|follow-up|communication|research|review|planning",
    "deadline": "deadline expression as mentioned, empty string if none",
    "effort": 1,
    "dependencies": ["other task this depends on"],
    "tags": ["tag"],
    "context": "the sentence from the transcript that produced this task"
  }
]

Effort is a 1-5 scale: 1 = under 30 minutes, 2 = under 2 hours, 3 = half a
day, 4 = a full day, 5 = more than a day.

Transcript:
%s`, transcript)
}

func outcomesPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this meeting transcript and extract its outcomes.

A decision is something the group settled on. An action item is work someone
must do after the meeting. An unresolved question is something raised but not
answered.

Return ONLY valid JSON with this exact structure, no prose:
{
  "decisions": [
    {"text": "what was decided", "owner": "who drove it", "deadline": "", "priority": "medium", "context": "supporting quote"}
  ],
  "action_items": [
    {"text": "what must be done", "owner": "who must do it", "deadline": "deadline as mentioned or empty", "priority": "high|medium|low", "context": "supporting quote"}
  ],
  "unresolved_questions": [
    {"text": "the open question", "owner": "", "deadline": "", "priority": "medium", "context": "supporting quote"}
  ],
  "summary": "2-3 sentence summary"
}

Transcript:
%s`, transcript)
}
