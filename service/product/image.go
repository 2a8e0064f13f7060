// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package product

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const dataScheme = "data:"

// InlineImage is a decoded data URI payload.
type InlineImage struct {
	Data        []byte
	ContentType string
	Extension   string
}

// IsInline reports whether foto carries inline image bytes rather than a URL.
func IsInline(foto string) bool {
	return strings.HasPrefix(foto, dataScheme)
}

// ObjectName is the blob name of an image of product id.
func ObjectName(id, ext string) string {
	return id + "." + ext
}

func invalidImage(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrValidation, ErrInvalidImage, fmt.Sprintf(format, args...))
}

// ParseInline decodes a "data:image/<subtype>[;param...];base64,<payload>"
// URI. The extension is the media subtype without any "+suffix" and the
// content type is "image/<extension>".
func ParseInline(foto string) (*InlineImage, error) {
	if !IsInline(foto) {
		return nil, invalidImage("missing %q scheme", dataScheme)
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(foto, dataScheme), ",")
	if !ok {
		return nil, invalidImage("missing payload separator")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, invalidImage("payload must be base64 encoded")
	}

	top, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || top != "image" || subtype == "" {
		return nil, invalidImage("unsupported media type %q", mediaType)
	}
	ext, _, _ := strings.Cut(subtype, "+")
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return nil, invalidImage("unsupported media subtype %q", subtype)
		}
	}
	if ext == "" {
		return nil, invalidImage("unsupported media subtype %q", subtype)
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, invalidImage("bad base64 payload: %v", err)
	}
	if len(data) == 0 {
		return nil, invalidImage("empty payload")
	}

	return &InlineImage{
		Data:        data,
		ContentType: "image/" + ext,
		Extension:   ext,
	}, nil
}
