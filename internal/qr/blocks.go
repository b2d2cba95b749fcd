package qr

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// ImageBlock is one image drawn on a PDF page.
type ImageBlock struct {
	Width  int
	Height int
	Data   []byte // image data as stored in the PDF
	Filter string // stream filter, e.g. DCTDecode; empty for raw samples
	Inline bool   // embedded in the content stream without an xref entry
}

// pageImageBlocks collects the image blocks of the first page: XObject
// images from the resource dictionary plus inline images from the
// decoded content stream. The provider draws the invoice QR inline, with
// no resource entry to look it up by, which is why the content stream
// has to be walked at all.
func pageImageBlocks(doc []byte) (blocks []ImageBlock, err error) {
	// the reader panics on malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("qr: malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("qr: decode pdf: %w", err)
	}
	if reader.NumPage() < 1 {
		return nil, fmt.Errorf("qr: pdf has no pages")
	}
	page := reader.Page(1)

	xobjects := page.V.Key("Resources").Key("XObject")
	for _, name := range xobjects.Keys() {
		x := xobjects.Key(name)
		if x.Kind() != pdf.Stream || x.Key("Subtype").Name() != "Image" {
			continue
		}
		data, err := io.ReadAll(x.Reader())
		if err != nil {
			continue
		}
		blocks = append(blocks, ImageBlock{
			Width:  int(x.Key("Width").Int64()),
			Height: int(x.Key("Height").Int64()),
			Data:   data,
			Filter: filterName(x.Key("Filter")),
		})
	}

	content, err := contentBytes(page)
	if err != nil {
		return nil, err
	}
	blocks = append(blocks, scanInlineImages(content)...)
	return blocks, nil
}

func contentBytes(page pdf.Page) ([]byte, error) {
	var buf bytes.Buffer
	contents := page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		if _, err := io.Copy(&buf, contents.Reader()); err != nil {
			return nil, fmt.Errorf("qr: read content stream: %w", err)
		}
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			if _, err := io.Copy(&buf, contents.Index(i).Reader()); err != nil {
				return nil, fmt.Errorf("qr: read content stream %d: %w", i, err)
			}
		}
	}
	return buf.Bytes(), nil
}

func filterName(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() > 0 {
			return v.Index(0).Name()
		}
	}
	return ""
}

// scanInlineImages walks a decoded content stream and collects the
// BI .. ID .. EI inline images with their pixel dimensions. Token
// boundaries are the usual PDF delimiters; EI inside binary sample data
// is only taken when delimited, which is the same heuristic every PDF
// consumer has to settle for here.
func scanInlineImages(content []byte) []ImageBlock {
	var blocks []ImageBlock
	pos := 0
	for {
		begin := indexToken(content, pos, "BI")
		if begin < 0 {
			break
		}
		idOp := indexToken(content, begin+2, "ID")
		if idOp < 0 {
			break
		}
		dict := content[begin+2 : idOp]

		// exactly one whitespace byte separates ID from the sample data
		dataStart := idOp + 2
		if dataStart < len(content) && isPDFSpace(content[dataStart]) {
			dataStart++
		}
		end := indexToken(content, dataStart, "EI")
		if end < 0 {
			break
		}

		width := dictInt(dict, "W", "Width")
		height := dictInt(dict, "H", "Height")
		if width > 0 && height > 0 {
			blocks = append(blocks, ImageBlock{
				Width:  width,
				Height: height,
				Data:   content[dataStart:end],
				Filter: dictName(dict, "F", "Filter"),
				Inline: true,
			})
		}
		pos = end + 2
	}
	return blocks
}

func indexToken(b []byte, from int, token string) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(token) <= len(b); i++ {
		if !bytes.Equal(b[i:i+len(token)], []byte(token)) {
			continue
		}
		before := i == 0 || isPDFDelim(b[i-1])
		afterAt := i + len(token)
		after := afterAt == len(b) || isPDFDelim(b[afterAt])
		if before && after {
			return i
		}
	}
	return -1
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isPDFSpace(c)
}

// dictTokens splits an inline image dictionary into name/value tokens.
func dictTokens(dict []byte) []string {
	var tokens []string
	i := 0
	for i < len(dict) {
		if isPDFSpace(dict[i]) {
			i++
			continue
		}
		start := i
		if dict[i] == '/' {
			i++
			for i < len(dict) && !isPDFDelim(dict[i]) {
				i++
			}
		} else {
			for i < len(dict) && !isPDFDelim(dict[i]) {
				i++
			}
			if i == start {
				i++ // lone delimiter, skip
				continue
			}
		}
		tokens = append(tokens, string(dict[start:i]))
	}
	return tokens
}

func dictValue(dict []byte, names ...string) (string, bool) {
	tokens := dictTokens(dict)
	for i := 0; i+1 < len(tokens); i++ {
		for _, name := range names {
			if tokens[i] == "/"+name {
				return tokens[i+1], true
			}
		}
	}
	return "", false
}

func dictInt(dict []byte, names ...string) int {
	v, ok := dictValue(dict, names...)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func dictName(dict []byte, names ...string) string {
	v, ok := dictValue(dict, names...)
	if !ok {
		return ""
	}
	if len(v) > 0 && v[0] == '/' {
		return v[1:]
	}
	return v
}
