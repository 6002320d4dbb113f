package schema

// Block is one node of an external artifact's structured body, e.g. a chat
// message block. Blocks are free-form JSON objects discriminated by "type".
type Block map[string]any

// Block and element types with protocol meaning.
const (
	BlockTypeActions  = "actions"
	BlockTypeSection  = "section"
	ElementTypeButton = "button"
	TextTypeMarkdown  = "mrkdwn"
)

// Type returns the block's "type" field or "".
func (b Block) Type() string {
	t, _ := b["type"].(string)
	return t
}

// Clone returns a shallow copy of the block.
func (b Block) Clone() Block {
	out := make(Block, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Action is one interactive choice offered by an artifact. The label doubles
// as identity: two actions with the same label are indistinguishable.
type Action struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
