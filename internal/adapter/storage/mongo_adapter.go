package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

const (
	colInventory = "inventory"
	colBills     = "bills"
)

var _ port.Store = (*MongoAdapter)(nil)

type itemDocument struct {
	ID        string          `bson:"_id"`
	Name      string          `bson:"name"`
	Price     bson.Decimal128 `bson:"price"`
	Quantity  int             `bson:"quantity"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

type lineDocument struct {
	ItemID   string `bson:"itemId"`
	Quantity int    `bson:"quantity"`
}

type billDocument struct {
	ID           string          `bson:"_id"`
	CustomerName string          `bson:"customerName"`
	Date         time.Time       `bson:"date"`
	TotalAmount  bson.Decimal128 `bson:"totalAmount"`
	Items        []lineDocument  `bson:"items"`
}

type MongoAdapter struct {
	client    *mongo.Client
	inventory *mongo.Collection
	bills     *mongo.Collection
}

func NewMongoAdapter(client *mongo.Client, database string) *MongoAdapter {
	db := client.Database(database)
	return &MongoAdapter{
		client:    client,
		inventory: db.Collection(colInventory),
		bills:     db.Collection(colBills),
	}
}

func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Migrate creates the indexes backing the list orderings.
func (m *MongoAdapter) Migrate(ctx context.Context) error {
	if _, err := m.inventory.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	}); err != nil {
		return fmt.Errorf("migrate %s indexes: %w", colInventory, err)
	}
	if _, err := m.bills.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	}); err != nil {
		return fmt.Errorf("migrate %s indexes: %w", colBills, err)
	}
	return nil
}

func (m *MongoAdapter) CreateItem(ctx context.Context, item domain.InventoryItem) error {
	doc, err := toItemDocument(item)
	if err != nil {
		return err
	}
	if _, err := m.inventory.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var doc itemDocument
	err := m.inventory.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}

	item, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (m *MongoAdapter) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	cursor, err := m.inventory.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}

	var docs []itemDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(docs))
	for _, doc := range docs {
		item, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *MongoAdapter) UpdateItem(ctx context.Context, item domain.InventoryItem) error {
	price, err := bson.ParseDecimal128(item.Price.String())
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}

	result, err := m.inventory.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{
		"$set": bson.M{
			"name":      item.Name,
			"price":     price,
			"quantity":  item.Quantity,
			"updatedAt": item.UpdatedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// PatchItem $sets only the provided fields so a concurrent $inc on quantity
// survives a name or price edit.
func (m *MongoAdapter) PatchItem(ctx context.Context, id string, patch domain.InventoryPatch, updatedAt time.Time) (*domain.InventoryItem, error) {
	set := bson.M{"updatedAt": updatedAt}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Price != nil {
		price, err := bson.ParseDecimal128(patch.Price.String())
		if err != nil {
			return nil, fmt.Errorf("encode price: %w", err)
		}
		set["price"] = price
	}
	if patch.Quantity != nil {
		set["quantity"] = *patch.Quantity
	}

	var doc itemDocument
	err := m.inventory.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patch item: %w", err)
	}

	item, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (m *MongoAdapter) DeleteItem(ctx context.Context, id string) error {
	result, err := m.inventory.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MongoAdapter) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	result, err := m.inventory.UpdateOne(ctx,
		bson.M{"_id": id, "quantity": bson.M{"$gte": quantity}},
		bson.M{
			"$inc": bson.M{"quantity": -quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *MongoAdapter) IncrementStock(ctx context.Context, id string, quantity int) error {
	result, err := m.inventory.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"quantity": quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MongoAdapter) CreateBill(ctx context.Context, bill domain.Bill) error {
	total, err := bson.ParseDecimal128(bill.TotalAmount.String())
	if err != nil {
		return fmt.Errorf("encode total: %w", err)
	}

	doc := billDocument{
		ID:           bill.ID,
		CustomerName: bill.CustomerName,
		Date:         bill.Date,
		TotalAmount:  total,
		Items:        toLineDocuments(bill.Items),
	}
	if _, err := m.bills.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	var doc billDocument
	err := m.bills.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bill: %w", err)
	}

	bill, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (m *MongoAdapter) ListBills(ctx context.Context) ([]domain.Bill, error) {
	cursor, err := m.bills.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find bills: %w", err)
	}

	var docs []billDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bills: %w", err)
	}

	bills := make([]domain.Bill, 0, len(docs))
	for _, doc := range docs {
		bill, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

func (m *MongoAdapter) UpdateBill(ctx context.Context, id string, update domain.BillUpdate) error {
	result, err := m.bills.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"customerName": update.CustomerName,
			"items":        toLineDocuments(update.Items),
		},
	})
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

func (m *MongoAdapter) DeleteBill(ctx context.Context, id string) error {
	result, err := m.bills.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

func (m *MongoAdapter) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func toItemDocument(item domain.InventoryItem) (itemDocument, error) {
	price, err := bson.ParseDecimal128(item.Price.String())
	if err != nil {
		return itemDocument{}, fmt.Errorf("encode price: %w", err)
	}
	return itemDocument{
		ID:        item.ID,
		Name:      item.Name,
		Price:     price,
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, nil
}

func (d itemDocument) toDomain() (domain.InventoryItem, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("decode price of item %s: %w", d.ID, err)
	}
	return domain.InventoryItem{
		ID:        d.ID,
		Name:      d.Name,
		Price:     price,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

func (d billDocument) toDomain() (domain.Bill, error) {
	total, err := decimal.NewFromString(d.TotalAmount.String())
	if err != nil {
		return domain.Bill{}, fmt.Errorf("decode total of bill %s: %w", d.ID, err)
	}

	items := make([]domain.LineItem, 0, len(d.Items))
	for _, li := range d.Items {
		items = append(items, domain.LineItem{ItemID: li.ItemID, Quantity: li.Quantity})
	}
	return domain.Bill{
		ID:           d.ID,
		CustomerName: d.CustomerName,
		Date:         d.Date.UTC(),
		TotalAmount:  total,
		Items:        items,
	}, nil
}

func toLineDocuments(items []domain.LineItem) []lineDocument {
	docs := make([]lineDocument, 0, len(items))
	for _, li := range items {
		docs = append(docs, lineDocument{ItemID: li.ItemID, Quantity: li.Quantity})
	}
	return docs
}
