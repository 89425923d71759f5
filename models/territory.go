package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
)

type Territory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"index;not null" json:"company_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name"`
	IsGroup   *bool     `gorm:"not null;default:false" json:"is_group"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// generic catchall territories that should never be assigned to a party
// when anything better is available.
var genericTerritoryNames = map[string]bool{
	"all territories":   true,
	"rest of the world": true,
	"rest of world":     true,
	"overige":           true,
}

func IsGenericTerritory(name string) bool {
	return genericTerritoryNames[strings.ToLower(strings.TrimSpace(name))]
}

func GetTerritories(ctx context.Context, companyId string) ([]*Territory, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var results []*Territory
	err := db.WithContext(ctx).
		Where("company_id = ? AND is_group = ?", companyId, false).
		Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PickTerritory selects a territory for a new party: the relation's country
// first, then the company's home country, then the first non-generic leaf.
func PickTerritory(territories []*Territory, relationCountry string, homeCountry string) string {
	match := func(want string) string {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			return ""
		}
		for _, t := range territories {
			if strings.ToLower(t.Name) == want {
				return t.Name
			}
		}
		return ""
	}

	if name := match(relationCountry); name != "" {
		return name
	}
	if name := match(homeCountry); name != "" {
		return name
	}
	for _, t := range territories {
		if !IsGenericTerritory(t.Name) {
			return t.Name
		}
	}
	if len(territories) > 0 {
		return territories[0].Name
	}
	return ""
}
