package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileType string

const (
	ProfileRestaurant ProfileType = "restaurant"
	ProfileSupplier   ProfileType = "supplier"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationAccepted NotificationStatus = "accepted"
	NotificationRejected NotificationStatus = "rejected"
)

// Profile is the business identity behind every session. Its ID doubles as
// the auth identity; Type never changes after registration.
type Profile struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"     json:"id"`
	Type         ProfileType `gorm:"not null"                 json:"type"`
	BusinessName string      `gorm:"not null"                 json:"business_name"`
	ContactEmail string      `gorm:"uniqueIndex;not null"     json:"contact_email"`
	Phone        string      `json:"phone"`
	Address      string      `json:"address"`
	PasswordHash string      `gorm:"not null"                 json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"               json:"id"`
	Token     string    `gorm:"uniqueIndex;not null"     json:"token"`
	ProfileID uuid.UUID `gorm:"type:uuid;index;not null" json:"profile_id"`
	ExpiresAt int64     `gorm:"not null"                 json:"expires_at"`
	Revoked   bool      `gorm:"default:false"            json:"revoked"`
}

type Product struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	SupplierID    uuid.UUID `gorm:"type:uuid;index;not null" json:"supplier_id"`
	Name          string    `gorm:"not null"                 json:"name"`
	Description   string    `json:"description"`
	Price         float64   `gorm:"not null;check:price > 0" json:"price"`
	Unit          string    `gorm:"not null;default:'kg'"    json:"unit"`
	StockQuantity int       `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	Category      string    `gorm:"index"                    json:"category"`
	ImageURL      string    `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                               json:"id"`
	ProfileID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_profile_product"  json:"profile_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_profile_product"  json:"product_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity > 0"                    json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductID"                                     json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShippingAddress is embedded into the order row.
type ShippingAddress struct {
	Street string `gorm:"column:ship_street" json:"street"`
	City   string `gorm:"column:ship_city"   json:"city"`
	State  string `gorm:"column:ship_state"  json:"state"`
	Zip    string `gorm:"column:ship_zip"    json:"zip"`
}

// Order holds a single-supplier purchase. Version is the optimistic-lock
// counter: every status or payment write goes through
// "WHERE id = ? AND version = ?".
type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"       json:"id"`
	RestaurantID    uuid.UUID       `gorm:"type:uuid;index;not null"   json:"restaurant_id"`
	SupplierID      uuid.UUID       `gorm:"type:uuid;index;not null"   json:"supplier_id"`
	Status          OrderStatus     `gorm:"not null;default:'pending'" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"not null;default:'pending'" json:"payment_status"`
	PaymentMethod   string          `gorm:"not null;default:'online'"  json:"payment_method"`
	TotalAmount     float64         `gorm:"not null"                   json:"total_amount"`
	ShippingAddress ShippingAddress `gorm:"embedded"                   json:"shipping_address"`
	Version         int             `gorm:"not null;default:1"         json:"version"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID"         json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"    json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"          json:"product_id"`
	Name      string    `gorm:"not null"                    json:"name"`
	Quantity  int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice float64   `gorm:"not null"                    json:"unit_price"`
	LineTotal float64   `gorm:"not null"                    json:"total_price"`
}

// OrderStatusHistory records every applied transition.
type OrderStatusHistory struct {
	ID         uint        `gorm:"primaryKey"               json:"id"`
	OrderID    uuid.UUID   `gorm:"type:uuid;index;not null" json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `gorm:"not null"                 json:"to_status"`
	Actor      string      `json:"actor"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SupplierNotification: one row per (supplier, order); the unique index is
// what makes a duplicate insert a no-op instead of a second row.
type SupplierNotification struct {
	ID         uuid.UUID          `gorm:"type:uuid;primaryKey"                                    json:"id"`
	SupplierID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_notif_supplier_order" json:"supplier_id"`
	OrderID    uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_notif_supplier_order" json:"order_id"`
	Status     NotificationStatus `gorm:"not null;default:'pending'" json:"status"`
	Seen       bool               `gorm:"not null;default:false"     json:"seen"`
	Order      *Order             `gorm:"foreignKey:OrderID"         json:"order,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func (n *SupplierNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
