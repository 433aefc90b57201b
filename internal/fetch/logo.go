// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"path"
	"sort"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"sitesmith/internal/brand"
)

const (
	paletteSize   = 5
	sampleEdge    = 48
	minAlpha      = 0x8000
	paletteBucket = 4 // bits dropped per channel when bucketing
	maxPixels     = 25_000_000
)

// decodeImage decodes body after checking the declared dimensions against
// maxPixels.
func decodeImage(body []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("image dimensions %dx%d out of bounds", cfg.Width, cfg.Height)
	}
	return image.Decode(bytes.NewReader(body))
}

// Uploader stores a public object and returns its URL.
type Uploader interface {
	UploadPublic(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Logo downloads an uploaded logo, samples its dominant colors and, when
// an Uploader is configured, re-hosts the file.
type Logo struct {
	client   *http.Client
	uploader Uploader
}

// NewLogo creates a logo fetcher. uploader may be nil.
func NewLogo(client *http.Client, uploader Uploader) *Logo {
	return &Logo{client: client, uploader: uploader}
}

func (l *Logo) Fetch(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
	pg, err := get(ctx, l.client, brand.SourceLogo, ref, "image/*", maxImageBytes)
	if err != nil {
		return brand.SourceAnalysis{}, err
	}
	img, format, err := decodeImage(pg.Body)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: ParseError, Source: brand.SourceLogo, Ref: ref, Err: err}
	}

	logoURL := ref
	if l.uploader != nil {
		sum := sha256.Sum256(pg.Body)
		key := path.Join("logos", hex.EncodeToString(sum[:12])+"."+format)
		hosted, err := l.uploader.UploadPublic(ctx, key, "image/"+format, pg.Body)
		if err != nil {
			slog.Warn("logo re-host failed, keeping source url", "url", ref, "error", err)
		} else {
			logoURL = hosted
		}
	}

	return brand.SourceAnalysis{
		Kind:   brand.SourceLogo,
		Ref:    ref,
		OK:     true,
		Colors: Palette(img, paletteSize),
		Images: []string{logoURL},
	}, nil
}

// samplePalette downloads an image and returns its palette.
func samplePalette(ctx context.Context, client *http.Client, imageURL string) ([]string, error) {
	pg, err := get(ctx, client, brand.SourceInstagram, imageURL, "image/*", maxImageBytes)
	if err != nil {
		return nil, err
	}
	img, _, err := decodeImage(pg.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", imageURL, err)
	}
	return Palette(img, paletteSize), nil
}

// Palette returns up to n dominant colors of img, most frequent first.
// The image is downscaled and pixels are bucketed by their high bits;
// each bucket reports its mean color. Mostly transparent pixels are
// ignored.
func Palette(img image.Image, n int) []string {
	dst := image.NewRGBA(image.Rect(0, 0, sampleEdge, sampleEdge))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	type bucket struct {
		count   int
		r, g, b int
	}
	buckets := map[uint32]*bucket{}
	var order []uint32
	for y := 0; y < sampleEdge; y++ {
		for x := 0; x < sampleEdge; x++ {
			r, g, b, a := dst.At(x, y).RGBA()
			if a < minAlpha {
				continue
			}
			r8, g8, b8 := int(r>>8), int(g>>8), int(b>>8)
			key := uint32(r8>>paletteBucket)<<16 | uint32(g8>>paletteBucket)<<8 | uint32(b8>>paletteBucket)
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{}
				buckets[key] = bk
				order = append(order, key)
			}
			bk.count++
			bk.r += r8
			bk.g += g8
			bk.b += b8
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return buckets[order[i]].count > buckets[order[j]].count })
	out := []string{}
	for _, key := range order {
		bk := buckets[key]
		c := brand.RGBHex(uint8(bk.r/bk.count), uint8(bk.g/bk.count), uint8(bk.b/bk.count))
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}
