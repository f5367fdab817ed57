package main

import "github.com/liminara/storefront/pkg/db/models"

func demoCatalog() []models.Product {
	image := func(slug string) *string {
		url := "https://cdn.liminara.dev/catalog/" + slug + ".jpg"
		return &url
	}
	return []models.Product{
		{SKU: "LMN-LAMP-01", Name: "Arc Floor Lamp", PriceCents: 12900, ImageURL: image("arc-lamp"), IsActive: true},
		{SKU: "LMN-RUG-01", Name: "Wool Runner Rug", PriceCents: 8900, ImageURL: image("runner-rug"), IsActive: true},
		{SKU: "LMN-MUG-01", Name: "Stoneware Mug", PriceCents: 1800, ImageURL: image("stoneware-mug"), IsActive: true},
		{SKU: "LMN-VASE-01", Name: "Ribbed Glass Vase", PriceCents: 3400, ImageURL: image("glass-vase"), IsActive: true},
		{SKU: "LMN-THROW-01", Name: "Linen Throw", PriceCents: 6500, ImageURL: image("linen-throw"), IsActive: true},
	}
}
