package mcpserver

// NoteFormatContract describes how notesync derives titles and filenames
// from note content, for LLM consumers that create or update notes.
const NoteFormatContract = `# notesync Note Format

Notes are plain UTF-8 text. There is no frontmatter.

## Title

The title is the first line of the content, up to the first newline.
An empty note is titled "untitled".

## Filenames

An opened note is written to the workspace directory as

    <title stripped to letters, digits, space and -_.()> (<id>)<extension>

The extension comes from the first entry of editor.title_extension_map whose
title_regex matches the title, for example "^#" -> "md". Without a match the
file has no extension. Renaming the title renames the file on the next save.

## Rules

1. Put the title on the first line. Keep it short.
2. Never edit the "(<id>)" suffix of a filename; it identifies the note.
3. Updates replace the whole content. Read the note first and send back the
   full text.
4. Trashed notes disappear from listings until restored.
`
