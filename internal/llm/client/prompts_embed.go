package client

import "embed"

// Prompt templates ship inside the binary; packaged builds have no source
// tree to read them from.
//
//go:embed prompts/*.txt
var embeddedPrompts embed.FS
