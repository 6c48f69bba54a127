package segment

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text length in model tokens. The segmenter's batch
// budget is expressed in these units.
// Implementations must be thread-safe for concurrent use.
type TokenCounter interface {
	// Count returns the number of tokens in text.
	Count(text string) (int, error)
}

// tiktokenCounter counts tokens with a tiktoken BPE encoding.
type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a TokenCounter backed by the named tiktoken
// encoding (e.g. "cl100k_base"). Loading an encoding may fetch its BPE ranks
// on first use; callers that need full determinism offline should inject
// their own TokenCounter instead.
func NewTiktokenCounter(encodingName string) (TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &tiktokenCounter{encoding: encoding}, nil
}

// Count returns the BPE token count of text.
func (c *tiktokenCounter) Count(text string) (int, error) {
	return len(c.encoding.Encode(text, nil, nil)), nil
}
