package entity

import "time"

// CatalogItem 主数据条目（公司/品牌/品类/类型/国家）
type CatalogItem struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Kind      string    `json:"kind" gorm:"size:16;not null;uniqueIndex:idx_catalog_kind_code"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex:idx_catalog_kind_code"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CatalogItem) TableName() string {
	return "catalog_items"
}

// CatalogKind 主数据类别
const (
	CatalogKindCompany  = "company"
	CatalogKindBrand    = "brand"
	CatalogKindCategory = "category"
	CatalogKindType     = "type"
	CatalogKindCountry  = "country"
)

// ValidCatalogKind 校验主数据类别
func ValidCatalogKind(kind string) bool {
	switch kind {
	case CatalogKindCompany, CatalogKindBrand, CatalogKindCategory, CatalogKindType, CatalogKindCountry:
		return true
	}
	return false
}
