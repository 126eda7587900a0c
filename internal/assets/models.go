package assets

import _ "embed"

// ModelsData is the embedded model catalog: providers and the models each
// one offers, consumed by the model config service at startup.
//
//go:embed models.json
var ModelsData []byte
