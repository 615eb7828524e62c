package models

import "sort"

// AssetAttribute プラットフォーム上のアセットの属性
type AssetAttribute struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Asset プラットフォーム上のアセット（読み取り専用）
type Asset struct {
	ID         string                    `json:"id"`
	Name       string                    `json:"name"`
	Type       string                    `json:"type,omitempty"`
	Attributes map[string]AssetAttribute `json:"attributes,omitempty"`
}

// AttributeNames は属性名をアルファベット順に返します。
func (a Asset) AttributeNames() []string {
	names := make([]string, 0, len(a.Attributes))
	for name := range a.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasAttribute はアセットが指定した属性を持つかを返します。
func (a Asset) HasAttribute(name string) bool {
	_, ok := a.Attributes[name]
	return ok
}

// RealmConfig レルムの表示設定
type RealmConfig struct {
	Styles     string `json:"styles,omitempty"`
	Logo       string `json:"logo,omitempty"`
	LogoMobile string `json:"logoMobile,omitempty"`
	Favicon    string `json:"favicon,omitempty"`
	Language   string `json:"language,omitempty"`
}
