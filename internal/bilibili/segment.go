package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gonewx/danmu2ass/pkg/danmu"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/protowire"
)

// SegmentSeconds is the length of one danmaku segment.
const SegmentSeconds = 360

const maxConcurrentSegments = 8

// Elem is one DanmakuElem of a DmSegMobileReply.
type Elem struct {
	ID       int64
	Progress int32 // milliseconds
	Mode     int32
	FontSize int32
	Color    uint32
	MidHash  string
	Content  string
	Ctime    int64
	Weight   int32
	Action   string
	Pool     int32
	IDStr    string
	Attr     int32
}

// ToDanmu converts the element; unsupported modes yield danmu.ErrUnsupportedMode.
func (e Elem) ToDanmu() (danmu.Danmu, error) {
	mode, err := danmu.ModeFromXML(int(e.Mode))
	if err != nil {
		return danmu.Danmu{}, err
	}
	rgb, err := danmu.DecodeColor(e.Color)
	if err != nil {
		return danmu.Danmu{}, err
	}
	fontSize := e.FontSize
	if fontSize < 0 {
		fontSize = 0
	}
	return danmu.Danmu{
		Timeline: float64(e.Progress) / 1000,
		Content:  e.Content,
		Mode:     mode,
		FontSize: uint32(fontSize),
		RGB:      rgb,
	}, nil
}

// ToDanmaku converts elements in order, dropping the ones that cannot be rendered.
func ToDanmaku(elems []Elem) (out []danmu.Danmu, skipped int) {
	out = make([]danmu.Danmu, 0, len(elems))
	for _, e := range elems {
		d, err := e.ToDanmu()
		if err != nil {
			skipped++
			continue
		}
		out = append(out, d)
	}
	return out, skipped
}

// DecodeSegment decodes a DmSegMobileReply message.
func DecodeSegment(b []byte) ([]Elem, error) {
	var elems []Elem
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode segment: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode segment: %w", protowire.ParseError(n))
			}
			e, err := decodeElem(v)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode segment: %w", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return elems, nil
}

func decodeElem(b []byte) (Elem, error) {
	var e Elem
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("failed to decode danmaku element: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("failed to decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case 1:
				e.ID = int64(v)
			case 2:
				e.Progress = int32(v)
			case 3:
				e.Mode = int32(v)
			case 4:
				e.FontSize = int32(v)
			case 5:
				e.Color = uint32(v)
			case 8:
				e.Ctime = int64(v)
			case 9:
				e.Weight = int32(v)
			case 11:
				e.Pool = int32(v)
			case 13:
				e.Attr = int32(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("failed to decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case 6:
				e.MidHash = string(v)
			case 7:
				e.Content = string(v)
			case 10:
				e.Action = string(v)
			case 12:
				e.IDStr = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("failed to decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

// Segment fetches the idx-th (1-based) six-minute danmaku segment of cid.
// A 304 reply means the segment is empty.
func (c *Client) Segment(ctx context.Context, cid uint64, idx int) ([]Elem, error) {
	query := url.Values{
		"oid":           {strconv.FormatUint(cid, 10)},
		"segment_index": {strconv.Itoa(idx)},
		"type":          {"1"},
	}
	resp, err := c.get(ctx, c.SegmentBase, "/x/v2/dm/web/seg.so", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if c.Verbose {
			log.Printf("[Bilibili] cid=%d segment=%d returned %d", cid, idx, resp.StatusCode)
		}
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("segment cid=%d idx=%d: status = %d", cid, idx, resp.StatusCode)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var r apiResponse[json.RawMessage]
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("failed to decode segment error response: %w", err)
		}
		if _, err := r.payload(); err != nil {
			return nil, fmt.Errorf("segment cid=%d idx=%d: %w", cid, idx, err)
		}
		return nil, fmt.Errorf("%w: segment cid=%d idx=%d returned JSON instead of protobuf", ErrAPI, cid, idx)
	}

	elems, err := DecodeSegment(body)
	if err != nil {
		return nil, fmt.Errorf("segment cid=%d idx=%d: %w", cid, idx, err)
	}
	return elems, nil
}

// DanmakuForVideo fetches every segment of a video concurrently and returns
// the elements sorted by progress.
func (c *Client) DanmakuForVideo(ctx context.Context, cid uint64, durationSec uint64) ([]Elem, error) {
	count := int((durationSec + SegmentSeconds - 1) / SegmentSeconds)
	log.Printf("[Bilibili] Fetching danmaku for cid=%d (%d seconds, %d segments)", cid, durationSec, count)

	results := make([][]Elem, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSegments)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			elems, err := c.Segment(ctx, cid, i+1)
			if err != nil {
				return err
			}
			results[i] = elems
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Elem
	for _, r := range results {
		all = append(all, r...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Progress < all[j].Progress
	})
	return all, nil
}
