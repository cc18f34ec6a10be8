package bilibili

import (
	"context"
	"fmt"
)

// Video is one downloadable danmaku track.
type Video struct {
	Title       string
	CID         uint64
	DurationSec uint64
}

// Resolve turns a remote input into the videos it refers to.
//
// A BV without a page yields every page, a season yields every episode,
// an episode yields itself. File and folder inputs are rejected.
func (c *Client) Resolve(ctx context.Context, in Input) ([]Video, error) {
	switch in.Kind {
	case InputBV:
		info, err := c.VideoInfo(ctx, in.BV)
		if err != nil {
			return nil, err
		}
		pages, err := info.SelectPages(in.Page)
		if err != nil {
			return nil, err
		}
		videos := make([]Video, 0, len(pages))
		for _, p := range pages {
			title := info.Title
			if len(info.Pages) > 1 {
				title = fmt.Sprintf("%s - P%d %s", info.Title, p.Page, p.Part)
			}
			videos = append(videos, Video{Title: title, CID: p.CID, DurationSec: p.Duration})
		}
		return videos, nil

	case InputSeason:
		season, err := c.Season(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		videos := make([]Video, 0, len(season.Episodes))
		for _, ep := range season.Episodes {
			videos = append(videos, episodeVideo(season, ep))
		}
		return videos, nil

	case InputEpisode:
		season, err := c.SeasonByEpisode(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		ep, ok := season.Episode(in.ID)
		if !ok {
			return nil, fmt.Errorf("episode ep%d not found in season %d", in.ID, season.SeasonID)
		}
		return []Video{episodeVideo(season, ep)}, nil

	default:
		return nil, fmt.Errorf("input kind %s is not a remote source", in.Kind)
	}
}

func episodeVideo(s *Season, ep Episode) Video {
	return Video{
		Title:       fmt.Sprintf("%s - %s", s.Title, ep.Title),
		CID:         ep.CID,
		DurationSec: ep.DurationSec(),
	}
}
