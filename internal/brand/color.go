// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package brand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	rgbColorRe = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*[, ]\s*(\d{1,3})\s*[, ]\s*(\d{1,3})\s*(?:[,/]\s*[\d.%]+\s*)?\)$`)
)

var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#ffffff",
	"red":    "#ff0000",
	"green":  "#008000",
	"blue":   "#0000ff",
	"navy":   "#000080",
	"teal":   "#008080",
	"orange": "#ffa500",
	"purple": "#800080",
	"gold":   "#ffd700",
	"maroon": "#800000",
	"olive":  "#808000",
	"gray":   "#808080",
	"grey":   "#808080",
}

// NormalizeColor converts a CSS color in hex, rgb()/rgba() or a common
// named form to lowercase #rrggbb. It returns "" for anything else.
func NormalizeColor(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if v, ok := namedColors[s]; ok {
		return v
	}
	if hexColorRe.MatchString(s) {
		h := s[1:]
		switch len(h) {
		case 3, 4:
			return fmt.Sprintf("#%c%c%c%c%c%c", h[0], h[0], h[1], h[1], h[2], h[2])
		default:
			return "#" + h[:6]
		}
	}
	if m := rgbColorRe.FindStringSubmatch(s); m != nil {
		var rgb [3]int
		for i := range rgb {
			n, err := strconv.Atoi(m[i+1])
			if err != nil || n > 255 {
				return ""
			}
			rgb[i] = n
		}
		return RGBHex(uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2]))
	}
	return ""
}

// RGBHex formats a color as #rrggbb.
func RGBHex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// parseHex splits a normalized #rrggbb color into channels.
func parseHex(hex string) (r, g, b int, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// IsNeutral reports whether a color is close to white, black or gray and
// therefore a poor brand primary.
func IsNeutral(hex string) bool {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return true
	}
	hi := max(r, g, b)
	lo := min(r, g, b)
	return hi-lo < 24 || hi < 24 || lo > 235
}

// IsLight reports whether a color has high relative luminance.
func IsLight(hex string) bool {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return true
	}
	return (299*r+587*g+114*b)/1000 >= 160
}

// ReadableText picks a text color for the given background.
func ReadableText(background string) string {
	if IsLight(background) {
		return "#1f2937"
	}
	return "#f9fafb"
}
