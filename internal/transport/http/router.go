package httpserver

import (
	"net/http"

	"github.com/atarasov/supplyhub/internal/handlers"
	"github.com/atarasov/supplyhub/internal/models"
	"github.com/atarasov/supplyhub/internal/service/token"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	Auth          *handlers.AuthHandler
	Profiles      *handlers.ProfileHandler
	Products      *handlers.ProductHandler
	Cart          *handlers.CartHandler
	Orders        *handlers.OrderHandler
	Notifications *handlers.NotificationHandler
	Search        *handlers.SearchHandler
	Tokens        *token.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.Auth.Register)
	v1.POST("/login", d.Auth.Login)
	v1.POST("/logout", d.Auth.Logout)

	v1.GET("/products", d.Products.GetProducts)
	v1.GET("/products/:id", d.Products.GetProduct)
	v1.GET("/search", d.Search.Search)
	v1.GET("/suppliers", d.Profiles.ListSuppliers)

	authed := v1.Group("", d.Tokens.AutoRefresh)
	authed.GET("/profile", d.Profiles.Me)
	authed.PATCH("/profile", d.Profiles.Update)
	authed.GET("/orders/:id", d.Orders.GetOrder)
	authed.GET("/orders/:id/history", d.Orders.History)
	authed.PATCH("/orders/:id/status", d.Orders.UpdateStatus)

	restaurant := authed.Group("", token.RequireType(models.ProfileRestaurant))
	restaurant.GET("/cart", d.Cart.GetCart)
	restaurant.POST("/cart", d.Cart.AddToCart)
	restaurant.PATCH("/cart/:id", d.Cart.SetQuantity)
	restaurant.DELETE("/cart/:id", d.Cart.RemoveItem)
	restaurant.DELETE("/cart", d.Cart.ClearCart)
	restaurant.POST("/orders", d.Orders.CreateOrder)
	restaurant.GET("/orders", d.Orders.ListRestaurantOrders)
	restaurant.POST("/orders/:id/pay", d.Orders.Pay)
	restaurant.GET("/orders/unpaid/count", d.Orders.UnpaidCount)

	supplier := authed.Group("/supplier", token.RequireType(models.ProfileSupplier))
	supplier.GET("/products", d.Products.MyProducts)
	supplier.POST("/products", d.Products.CreateProduct)
	supplier.PATCH("/products/:id", d.Products.PatchProduct)
	supplier.DELETE("/products/:id", d.Products.DeleteProduct)
	supplier.GET("/orders", d.Orders.ListSupplierOrders)
	supplier.GET("/notifications", d.Notifications.List)
	supplier.POST("/notifications/seen", d.Notifications.MarkSeen)
	supplier.GET("/notifications/unseen/count", d.Notifications.UnseenCount)
	supplier.PATCH("/notifications/:id", d.Notifications.Decide)
}
