// Package xmlparser parses bilibili-style danmaku XML files.
//
// A danmaku file is a flat list of <d> elements under a root element:
//
//	<i>
//	  <d p="0.581,1,25,14893055,1647777083220,0,398452452,0" user="...">快快快</d>
//	</i>
//
// Recorder files also carry <gift>, <sc> and <guard> elements, which are ignored.
package xmlparser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gonewx/danmu2ass/pkg/danmu"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Parser reads danmaku one at a time from an XML stream.
type Parser struct {
	decoder *xml.Decoder
	count   int
	skipped int
}

// NewParser creates a streaming parser over r.
// A leading byte order mark is discarded, and documents declaring a
// non UTF-8 encoding (e.g. GBK) are transcoded.
func NewParser(r io.Reader) *Parser {
	stripped := transform.NewReader(r, unicode.BOMOverride(transform.Nop))

	decoder := xml.NewDecoder(stripped)
	decoder.Strict = false
	decoder.CharsetReader = charsetReader
	return &Parser{decoder: decoder}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported XML encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Count returns the number of danmaku returned so far.
func (p *Parser) Count() int {
	return p.count
}

// Skipped returns the number of <d> elements skipped because of an unsupported mode.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Next returns the next danmaku in document order.
//
// Returns:
//   - danmu.Danmu: the parsed danmaku
//   - error: io.EOF at the end of the document, or a parse error
func (p *Parser) Next() (danmu.Danmu, error) {
	for {
		tok, err := p.decoder.Token()
		if err == io.EOF {
			return danmu.Danmu{}, io.EOF
		}
		if err != nil {
			return danmu.Danmu{}, fmt.Errorf("failed to parse XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "d" {
			continue
		}

		attr, found := findAttr(start.Attr, "p")
		if !found {
			return danmu.Danmu{}, fmt.Errorf("<d> element #%d has no p attribute", p.count+p.skipped+1)
		}

		d, err := ParseP(attr)
		if errors.Is(err, danmu.ErrUnsupportedMode) {
			p.skipped++
			if err := p.decoder.Skip(); err != nil {
				return danmu.Danmu{}, fmt.Errorf("failed to parse XML: %w", err)
			}
			continue
		}
		if err != nil {
			return danmu.Danmu{}, fmt.Errorf("invalid p attribute %q: %w", attr, err)
		}

		content, err := p.readContent()
		if err != nil {
			return danmu.Danmu{}, err
		}
		d.Content = content
		p.count++
		return d, nil
	}
}

// readContent collects character data up to the closing </d>.
func (p *Parser) readContent() (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := p.decoder.Token()
		if err != nil {
			return "", fmt.Errorf("failed to read <d> content: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		}
	}
}

func findAttr(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ParseP parses the p attribute of a <d> element.
//
// p = "0.581,1,25,14893055,1647777083220,0,398452452,0" holds, in order:
// time in seconds, mode (1 scrolling, 4 bottom, 5 top, 6 reverse), font size,
// color, send timestamp in milliseconds, pool, sender hash, row id.
// Only the first four fields are used.
//
// Returns danmu.ErrUnsupportedMode (wrapped) for modes the converter does not render.
func ParseP(p string) (danmu.Danmu, error) {
	fields := strings.Split(p, ",")
	if len(fields) < 4 {
		return danmu.Danmu{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}

	timeline, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return danmu.Danmu{}, fmt.Errorf("invalid time: %w", err)
	}

	modeNum, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return danmu.Danmu{}, fmt.Errorf("invalid mode: %w", err)
	}
	mode, err := danmu.ModeFromXML(modeNum)
	if err != nil {
		return danmu.Danmu{}, err
	}

	fontSize, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return danmu.Danmu{}, fmt.Errorf("invalid font size: %w", err)
	}

	colorNum, err := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 32)
	if err != nil {
		return danmu.Danmu{}, fmt.Errorf("invalid color: %w", err)
	}
	rgb, err := danmu.DecodeColor(uint32(colorNum))
	if err != nil {
		return danmu.Danmu{}, err
	}

	return danmu.Danmu{
		Timeline: timeline,
		Mode:     mode,
		FontSize: uint32(fontSize),
		RGB:      rgb,
	}, nil
}

// ParseFile reads every danmaku from the XML file at path.
func ParseFile(path string) ([]danmu.Danmu, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open danmaku file '%s': %w", path, err)
	}
	defer f.Close()

	return ParseAll(f)
}

// ParseAll drains a parser over r.
func ParseAll(r io.Reader) ([]danmu.Danmu, error) {
	p := NewParser(r)
	var out []danmu.Danmu
	for {
		d, err := p.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
}
