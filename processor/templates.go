package processor

// Templates maps a mode to its prompt template. The template's single
// {text} placeholder receives the input. Every template instructs the model
// to emit only the transformed content, no commentary; keep that contract
// when editing.
type Templates map[Mode]string

// placeholder is the substitution marker inside templates.
const placeholder = "{text}"

// UtteranceTemplates returns the per-utterance template table. The returned
// map is a fresh copy; pipelines never share mutable state.
func UtteranceTemplates() Templates {
	return Templates{
		ModeClean: `You are a dictation assistant. Clean up the following speech transcription:
- Remove filler words (um, uh, like, you know, so, basically, actually)
- Fix grammar and punctuation
- Keep the original meaning and tone
- Do NOT add any extra content or explanations
- Output ONLY the cleaned text, nothing else

Transcription: {text}

Cleaned text:`,

		ModeRewrite: `You are a writing assistant. Rewrite the following text to be clearer and more professional:
- Improve clarity and flow
- Fix any grammar issues
- Maintain the core message
- Output ONLY the rewritten text, nothing else

Original: {text}

Rewritten:`,

		ModeBullets: `Convert the following text into bullet points:
- Extract key points
- Use clear, concise language
- Output ONLY the bullet points, nothing else

Text: {text}

Bullet points:`,

		ModeEmail: `Format the following as a professional email:
- Add appropriate greeting and closing
- Keep it concise and professional
- Output ONLY the email, nothing else

Content: {text}

Email:`,
	}
}

// DocumentTemplates returns the whole-document template table used by the
// editor.
func DocumentTemplates() Templates {
	return Templates{
		ModeOrganize: `You are a document editor. Organize and structure the following raw notes into a coherent document.

Instructions:
- Group related thoughts together
- Add clear section headers where appropriate
- Remove duplicate ideas
- Keep the original voice and meaning
- Do NOT add new content, only organize what exists
- Output ONLY the organized document, no explanations

Raw Notes:
{text}

Organized Document:`,

		ModeProfessional: `You are a professional editor. Transform these rough notes into a polished, professional document.

Instructions:
- Improve clarity and flow
- Fix grammar and punctuation
- Use professional language
- Maintain the core message and ideas
- Structure with clear sections if needed
- Output ONLY the final document, no explanations

Raw Notes:
{text}

Professional Document:`,

		ModeSummarize: `You are a document summarizer. Create a concise summary of the following notes.

Instructions:
- Extract the key points and main ideas
- Present as a clear, readable summary
- Use bullet points for main takeaways
- Keep it under 200 words
- Output ONLY the summary, no explanations

Notes:
{text}

Summary:`,

		ModeActionItems: `You are a task extractor. Extract all action items and to-dos from the following notes.

Instructions:
- Find all tasks, action items, and things to do
- List each as a clear, actionable item
- Include any deadlines or assignees mentioned
- Use checkbox format: - [ ] Task
- Output ONLY the action items list, no explanations

Notes:
{text}

Action Items:`,
	}
}
