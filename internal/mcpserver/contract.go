package mcpserver

// CaptureContract describes how notes and undercurrents are shaped, for LLM
// consumers calling the capture and insight tools.
const CaptureContract = `# Maelstrom Capture Contract

## Notes

- A note is plain text of 1 to 280 characters after trimming surrounding whitespace.
- Notes are immutable. They can be deleted but never edited.
- Capture one thought per note; do not batch several thoughts into one call.

## Undercurrents

An undercurrent is generated from up to 20 of the newest notes in a timeframe
(` + "`24h`, `week`, `month` or `all`" + `). At least 3 notes are required; with fewer the
generator answers "Not enough turbulence yet. Keep writing." and nothing is stored.

Each undercurrent has a summary, a few reflective questions and four hex colours.

## Citations

The summary and questions cite notes with bracketed markers such as ` + "`[1]` or `[1, 3]`" + `.
` + "`read_insight`" + ` renumbers the markers 1, 2, 3... in reading order, separately for the
summary and for every question, and lists the note ids behind each marker.

- Markers that point at no note are removed.
- Adjacent markers are merged into one.
- Punctuation that followed a marker is moved in front of it.

Use ` + "`get_cited_notes`" + ` with the displayed marker number to read the cited notes. Pass
` + "`question`" + ` (1-based) to resolve a marker inside a question instead of the summary.
`
