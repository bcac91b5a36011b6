package mcpserver

// TimeFormatContract describes how plan items are written in notes so that
// LLM consumers can add or edit them by hand.
const TimeFormatContract = `# Day Planner Time Format

A plan item is a Markdown task whose text starts with a time.

## Structure

` + "```" + `markdown
# Day planner

- [ ] 09:00 - 09:30 Standup
- [ ] 10:15 Deep work
	- notes under an item belong to it
- [x] 1:30pm - 2:00pm Lunch
- [ ] 16:00 - 17:00 Review ⏳ 2025-01-21
` + "```" + `

## Rules

1. **Only tasks count.** The line must be a list item with a checkbox
   (` + "`" + `- [ ]` + "`" + `, ` + "`" + `* [x]` + "`" + `, ` + "`" + `1. [ ]` + "`" + `). Plain bullets are never scheduled.
2. **Start time** comes first: ` + "`" + `HH:MM` + "`" + ` or ` + "`" + `H.MM` + "`" + `, 24-hour, or with an
   ` + "`" + `am` + "`" + `/` + "`" + `pm` + "`" + ` suffix.
3. **End time** is optional, after a dash: ` + "`" + `09:00 - 10:00` + "`" + `. Without one the item
   lasts 30 minutes.
4. **Which day.** Items in a daily note (` + "`" + `YYYY-MM-DD.md` + "`" + `) belong to that day.
   Items anywhere else need a scheduled marker: ` + "`" + `⏳ YYYY-MM-DD` + "`" + ` or
   ` + "`" + `[scheduled:: YYYY-MM-DD]` + "`" + `.
5. **Body.** Nested list items without their own time are part of the item text.
   Nested items with a time are separate plan items.
6. **Malformed times** such as ` + "`" + `25:00` + "`" + ` are reported as errors and never guessed.

## Editing

- Prefer the ` + "`" + `reschedule_item` + "`" + ` tool over rewriting the note. It only touches the
  time token and refuses to write when the line changed since it was read.
- Use ` + "`" + `insert_planner_heading` + "`" + ` to start a plan in a day without one.
`
