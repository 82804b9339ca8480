package poster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"flixrank/services/cache"
	"flixrank/services/tmdb"
)

var (
	ErrNoPoster    = errors.New("no poster available for id")
	ErrInvalidRank = errors.New("rank out of range")
)

const (
	renderCacheTTL = 24 * time.Hour
	jpegQuality    = 85
)

// MetadataSource is the slice of the TMDB client used to turn a catalog id
// into a poster image path.
type MetadataSource interface {
	FindByIMDB(ctx context.Context, imdbID string) (string, int64, error)
	GetDetails(ctx context.Context, mediaType string, tmdbID int64) (*tmdb.Details, error)
}

// Compositor renders rank-badged poster JPEGs. Rendering happens at request
// time so the scraped ranking only has to hand out URLs, and each rendered
// image is cached by (type, rank, id).
type Compositor struct {
	httpc *http.Client
	meta  MetadataSource
	store cache.Store
}

func NewCompositor(httpc *http.Client, meta MetadataSource, store cache.Store) *Compositor {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Compositor{httpc: httpc, meta: meta, store: store}
}

// Render resolves the id to a poster image, overlays the rank badge and
// returns the encoded JPEG.
func (c *Compositor) Render(ctx context.Context, mediaType string, rank int, id string) ([]byte, error) {
	if rank < 1 || rank > 10 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}

	key := cache.Key("poster", mediaType, strconv.Itoa(rank), id)
	if data, ok := c.store.Get(key); ok {
		return data, nil
	}

	posterURL, err := c.resolvePosterURL(ctx, mediaType, id)
	if err != nil {
		return nil, err
	}

	src, err := c.fetchImage(ctx, posterURL)
	if err != nil {
		return nil, fmt.Errorf("fetching poster: %w", err)
	}

	badged := overlayBadge(src, rank)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, badged, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding poster: %w", err)
	}

	data := buf.Bytes()
	c.store.Set(key, data, renderCacheTTL)
	return data, nil
}

func (c *Compositor) resolvePosterURL(ctx context.Context, mediaType, id string) (string, error) {
	var (
		tmdbID int64
		err    error
	)
	switch {
	case strings.HasPrefix(id, "tt"):
		var foundType string
		foundType, tmdbID, err = c.meta.FindByIMDB(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", id, err)
		}
		if foundType != "" {
			mediaType = foundType
		}
	case strings.HasPrefix(id, "tmdb:"):
		tmdbID, err = strconv.ParseInt(strings.TrimPrefix(id, "tmdb:"), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: bad id %q", ErrNoPoster, id)
		}
	default:
		// Synthetic ids have no artwork to badge.
		return "", fmt.Errorf("%w: %s", ErrNoPoster, id)
	}

	details, err := c.meta.GetDetails(ctx, mediaType, tmdbID)
	if err != nil {
		return "", fmt.Errorf("poster details for %s: %w", id, err)
	}
	if details.PosterPath == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPoster, id)
	}
	if strings.HasPrefix(details.PosterPath, "http") {
		return details.PosterPath, nil
	}
	return tmdb.ImageURL(details.PosterPath, "w500"), nil
}

func (c *Compositor) fetchImage(ctx context.Context, url string) (image.Image, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("image fetch returned status %d", resp.StatusCode)
			}
			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

var (
	plateColor   = color.RGBA{R: 16, G: 16, B: 20, A: 230}
	numeralColor = color.White
)

// overlayBadge draws a dark rounded plate in the bottom-left corner with the
// rank numeral on it. The numeral comes from the fixed 7x13 bitmap face,
// scaled up nearest-neighbour so it stays crisp at poster size.
func overlayBadge(src image.Image, rank int) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)

	text := strconv.Itoa(rank)

	// Plate scales with the poster: roughly a quarter of the width, a bit
	// wider for the two-digit rank.
	plateH := bounds.Dy() / 6
	plateW := plateH * (2 + len(text)) / 3
	margin := bounds.Dx() / 40
	plate := image.Rect(
		bounds.Min.X+margin,
		bounds.Max.Y-margin-plateH,
		bounds.Min.X+margin+plateW,
		bounds.Max.Y-margin,
	)

	mask := &roundedRect{rect: plate, radius: plateH / 5}
	draw.DrawMask(out, plate, image.NewUniform(plateColor), image.Point{}, mask, plate.Min, draw.Over)

	numeral := renderNumeral(text)
	scale := (plateH * 7 / 10) / numeral.Bounds().Dy()
	if scale < 1 {
		scale = 1
	}
	dstW := numeral.Bounds().Dx() * scale
	dstH := numeral.Bounds().Dy() * scale
	dst := image.Rect(
		plate.Min.X+(plate.Dx()-dstW)/2,
		plate.Min.Y+(plate.Dy()-dstH)/2,
		plate.Min.X+(plate.Dx()-dstW)/2+dstW,
		plate.Min.Y+(plate.Dy()-dstH)/2+dstH,
	)
	xdraw.NearestNeighbor.Scale(out, dst, numeral, numeral.Bounds(), xdraw.Over, nil)

	return out
}

// renderNumeral draws the text at the bitmap face's native size onto a
// transparent canvas.
func renderNumeral(text string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Height

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(numeralColor),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)
	return canvas
}

// roundedRect is an alpha mask for a rectangle with rounded corners.
type roundedRect struct {
	rect   image.Rectangle
	radius int
}

func (m *roundedRect) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedRect) Bounds() image.Rectangle { return m.rect }

func (m *roundedRect) At(x, y int) color.Color {
	if !image.Pt(x, y).In(m.rect) {
		return color.Alpha{}
	}
	r := m.radius
	// Distance check only matters inside the corner squares.
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r && y < m.rect.Min.Y+r:
		cx, cy = m.rect.Min.X+r, m.rect.Min.Y+r
	case x >= m.rect.Max.X-r && y < m.rect.Min.Y+r:
		cx, cy = m.rect.Max.X-r-1, m.rect.Min.Y+r
	case x < m.rect.Min.X+r && y >= m.rect.Max.Y-r:
		cx, cy = m.rect.Min.X+r, m.rect.Max.Y-r-1
	case x >= m.rect.Max.X-r && y >= m.rect.Max.Y-r:
		cx, cy = m.rect.Max.X-r-1, m.rect.Max.Y-r-1
	default:
		return color.Alpha{A: 255}
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}
