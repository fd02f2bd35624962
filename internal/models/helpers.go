package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// SiteRoot 返回网站根地址(scheme://host/),用于拼接联系页路径
func SiteRoot(site string) (string, error) {
	if err := ValidateURL(site); err != nil {
		return "", err
	}
	u, _ := url.Parse(site)
	return u.Scheme + "://" + u.Host + "/", nil
}

// JoinSitePath 拼接网站根地址与相对路径
func JoinSitePath(root, path string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(path, "/")
}

// NewRunID 生成唯一运行ID
func NewRunID() string {
	return uuid.New().String()
}
