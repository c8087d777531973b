package assets

import (
	"path/filepath"
	"strings"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeImage
	AssetTypeFont
	AssetTypeShader
	AssetTypeConfig
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeImage:
		return "image"
	case AssetTypeFont:
		return "font"
	case AssetTypeShader:
		return "shader"
	case AssetTypeConfig:
		return "config"
	}
	return "none"
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return AssetTypeImage
	case ".fnt":
		return AssetTypeFont
	case ".spv":
		return AssetTypeShader
	case ".toml":
		return AssetTypeConfig
	default:
		return AssetTypeNone
	}
}
