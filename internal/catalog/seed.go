package catalog

import (
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var seededAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SeedProducts is the starting catalog. The SQLite migrations insert the same
// rows.
func SeedProducts() []domain.Product {
	p := func(id int64, name string, price int64, category, image, description string) domain.Product {
		return domain.Product{
			ID:          id,
			Name:        name,
			Price:       decimal.NewFromInt(price),
			Category:    category,
			Image:       image,
			Description: description,
			Stock:       25,
			CreatedAt:   seededAt.Add(time.Duration(id) * time.Hour),
		}
	}
	return []domain.Product{
		p(1, "iPhone 15 Pro", 999, "Electronics", "https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=400", "Latest iPhone with advanced camera system"),
		p(2, `MacBook Pro 16"`, 2499, "Laptops", "https://images.unsplash.com/photo-1496181133206-80ce9b88a853?w=400", "Powerful laptop for professionals"),
		p(3, "Sony WH-1000XM5", 399, "Audio", "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400", "Premium noise-canceling headphones"),
		p(4, "Apple Watch Series 9", 399, "Wearables", "https://images.unsplash.com/photo-1434494878577-86c23bcb06b9?w=400", "Advanced smartwatch with health monitoring"),
		p(5, "Samsung Galaxy S24", 799, "Electronics", "https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=400", "Flagship Android smartphone"),
		p(6, "Dell XPS 13", 1199, "Laptops", "https://images.unsplash.com/photo-1588872657578-7efd1f1555ed?w=400", "Ultra-portable premium laptop"),
		p(7, "JBL Charge 5", 179, "Audio", "https://images.unsplash.com/photo-1608043152269-423dbba4e7e1?w=400", "Portable Bluetooth speaker"),
		p(8, "Fitbit Versa 4", 199, "Wearables", "https://images.unsplash.com/photo-1575311373937-040b8e1fd5b6?w=400", "Fitness-focused smartwatch"),
	}
}
