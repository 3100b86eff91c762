package protocol

import (
	"github.com/invopop/jsonschema"
)

// Schema 入站消息的 JSON Schema，由 /protocol/schema 发布
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	variants := []*jsonschema.Schema{
		reflector.Reflect(new(AuthRequest)),
		reflector.Reflect(new(InputRequest)),
		reflector.Reflect(new(PingRequest)),
	}
	for _, s := range variants {
		s.Version = ""
	}
	variants[0].Title = "auth"
	variants[1].Title = "input"
	variants[2].Title = "ping"

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "skirace client messages",
		Description: "Messages a client may send; anything else is answered with invalid_message.",
		OneOf:       variants,
	}
}
