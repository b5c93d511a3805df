package domain

import "time"

// SeedMessages 返回会话初始化时使用的固定收件箱数据。
// 时间戳相对 base 计算，便于测试得到确定结果。
func SeedMessages(base time.Time) []Message {
	return []Message{
		{
			ID:          1,
			SenderName:  "Amelia Hart",
			SenderEmail: "amelia.hart@example.com",
			Subject:     "Quarterly planning meeting",
			Preview:     "Can we move the planning session to Thursday afternoon?",
			Content:     "Hi,\n\nCan we move the planning session to Thursday afternoon? Half the team is out on Wednesday.\n\nThanks,\nAmelia",
			CreatedAt:   base.Add(-15 * time.Minute),
			Category:    CategoryPrimary,
			IsNew:       true,
		},
		{
			ID:          2,
			SenderName:  "Storefront Deals",
			SenderEmail: "deals@storefront.example.com",
			Subject:     "Weekend sale: 30% off accessories",
			Preview:     "Our biggest accessories sale of the season starts Friday.",
			CreatedAt:   base.Add(-2 * time.Hour),
			Category:    CategoryPromotions,
			IsNew:       true,
		},
		{
			ID:         3,
			SenderName: "Photo Circle",
			Subject:    "Jonas commented on your photo",
			Preview:    "\"Great light in this one!\"",
			CreatedAt:  base.Add(-5 * time.Hour),
			Category:   CategorySocial,
		},
		{
			ID:          4,
			SenderName:  "Billing",
			SenderEmail: "billing@example.com",
			Subject:     "Your invoice for October",
			Preview:     "Invoice INV-2041 is now available.",
			Content:     "Invoice INV-2041 is now available in your account. The amount will be charged on the 1st.",
			CreatedAt:   base.Add(-26 * time.Hour),
			Read:        true,
			Starred:     true,
			Category:    CategoryPrimary,
		},
		{
			ID:          5,
			SenderName:  "Storefront Deals",
			SenderEmail: "deals@storefront.example.com",
			Subject:     "New arrivals picked for you",
			Preview:     "Fresh picks based on your recent orders.",
			CreatedAt:   base.Add(-50 * time.Hour),
			Read:        true,
			Category:    CategoryPromotions,
			Archived:    true,
		},
		{
			ID:          6,
			SenderName:  "Marco Ruiz",
			SenderEmail: "marco@example.org",
			Subject:     "Re: shipping address change",
			Preview:     "Done, the order will go to the new address.",
			Content:     "Done, the order will go to the new address. Tracking details will follow by email.",
			CreatedAt:   base.Add(-72 * time.Hour),
			Starred:     true,
			Category:    CategoryPrimary,
		},
		{
			ID:         7,
			SenderName: "Community Forum",
			Subject:    "3 new replies in \"Favorite desk setups\"",
			Preview:    "See what people are saying in threads you follow.",
			CreatedAt:  base.Add(-96 * time.Hour),
			Read:       true,
			Category:   CategorySocial,
		},
	}
}
