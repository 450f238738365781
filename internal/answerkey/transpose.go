package answerkey

import (
	"fmt"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// Transpose remaps answers written in the booklet's local numbering onto the
// canonical numbering. Missing answers become Blank and answers beyond the
// key length are dropped. An unknown tag wraps model.ErrUnknownBooklet.
func (k *Key) Transpose(booklet, answers string) (string, error) {
	tag, ok := k.Resolve(booklet)
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownBooklet, booklet)
	}
	return permute(k.tables[tag], []rune(answers), len(k.answers)), nil
}

// Inverse maps canonical answers back into the booklet's local numbering.
func (k *Key) Inverse(booklet, canonical string) (string, error) {
	tag, ok := k.Resolve(booklet)
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownBooklet, booklet)
	}
	return permute(k.inverse[tag], []rune(canonical), len(k.answers)), nil
}

// permute writes src[i] to position table[i].
func permute(table []int, src []rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = Blank
	}
	for i, dst := range table {
		if i < len(src) {
			out[dst] = src[i]
		}
	}
	return string(out)
}
