package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

const maxObjectKeyLen = 200

// ExportKey 是某文档某版本的 PDF 对象名。
func ExportKey(ownerID uint, documentID string, version int) string {
	return fmt.Sprintf("%s%s/v%d.pdf", exportPrefix(ownerID), documentID, version)
}

// ExportPrefix 是一份文档全部导出版本的公共前缀。
func ExportPrefix(ownerID uint, documentID string) string {
	return exportPrefix(ownerID) + documentID + "/"
}

func exportPrefix(ownerID uint) string {
	return fmt.Sprintf("exports/%d/", ownerID)
}

// AssetKey 生成用户图片的对象名，ext 形如 ".png"。
func AssetKey(ownerID uint, name, ext string) string {
	return fmt.Sprintf("user-assets/%d/%s%s", ownerID, name, ext)
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// IsAssetKeyOf 校验对象名属于该用户且是允许的图片类型。
func IsAssetKeyOf(ownerID uint, key string) bool {
	if key == "" || len(key) > maxObjectKeyLen || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, fmt.Sprintf("user-assets/%d/", ownerID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	ext := strings.ToLower(path.Ext(key))
	for _, allowed := range imageExts {
		if ext == allowed {
			return true
		}
	}
	return false
}
