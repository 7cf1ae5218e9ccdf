package lists

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/identity"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

var (
	errMissingIDProvider = errors.New("id provider is required")
	errMissingListStore  = errors.New("list store is required")
	errMissingListName   = errors.New("list name is required")
	errMissingProduct    = errors.New("product not found")
	errInvalidStatus     = errors.New("unknown list status")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable operation.reason code for callers that
// branch on failure class rather than message text.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "lists.service.new"
	opCreateList       = "lists.create_list"
	opAddProduct       = "lists.add_product"
	opEditProduct      = "lists.edit_product"
	opTogglePurchased  = "lists.toggle_purchased"
	opSetStatus        = "lists.set_status"
	opCompleteShopping = "lists.complete_shopping"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues fresh list and product identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// PurchasedProduct is one checked-off row handed to the completion
// recorder when a shopping run finishes.
type PurchasedProduct struct {
	ProductID     string
	Name          string
	Quantity      float64
	Units         string
	Category      string
	SelectedStore string
	SelectedPrice float64
}

// CompletionRecorder receives the purchased products of a completed list.
type CompletionRecorder interface {
	RecordCompletion(listID, listName string, products []PurchasedProduct) error
}

// ServiceConfig describes Service dependencies.
type ServiceConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements every list write path on top of a per-list store.
// It holds no list state of its own; all state lives in the stores it is
// handed, so the same service instance serves any number of lists.
type Service struct {
	clock  func() time.Time
	ids    IDProvider
	logger *zap.Logger
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{clock: clock, ids: cfg.IDProvider, logger: logger}, nil
}

// ListDetails carries the user-supplied fields of a new list.
type ListDetails struct {
	Name         string
	Description  string
	Emoji        string
	Color        string
	ShoppingDate string
	Budget       float64
}

// CreateList seeds a fresh per-list store with its initial document and
// the owner's collaborator row, all in one transaction so observers see a
// fully formed list. Returns the generated list id.
func (s *Service) CreateList(list *store.Store, details ListDetails, owner identity.Identity) (string, error) {
	if list == nil {
		return "", newServiceError(opCreateList, "missing_store", errMissingListStore)
	}
	if strings.TrimSpace(details.Name) == "" {
		return "", newServiceError(opCreateList, "missing_name", errMissingListName)
	}
	listID, err := s.ids.NewID()
	if err != nil {
		return "", newServiceError(opCreateList, "id_generation_failed", err)
	}

	now := timestamp(s.clock)
	list.Transaction(func() {
		list.SetValue(ValueID, listID)
		list.SetValue(ValueName, details.Name)
		list.SetValue(ValueDescription, details.Description)
		list.SetValue(ValueEmoji, details.Emoji)
		list.SetValue(ValueColor, details.Color)
		list.SetValue(ValueShopping, details.ShoppingDate)
		list.SetValue(ValueBudget, details.Budget)
		list.SetValue(ValueStatus, StatusRegular)
		list.SetValue(ValueCreatedAt, now)
		list.SetValue(ValueUpdatedAt, now)
		if owner.UserID != "" {
			list.SetRow(TableCollaborators, owner.UserID, map[string]any{
				"nickname": owner.Nickname,
			})
		}
	})
	return listID, nil
}

// AddCollaborator records a user as a member of the list. Used both for
// share acceptance and for re-seeding the owner row after cold start.
func (s *Service) AddCollaborator(list *store.Store, member identity.Identity) error {
	if list == nil {
		return errMissingListStore
	}
	return list.SetRow(TableCollaborators, member.UserID, map[string]any{
		"nickname": member.Nickname,
	})
}

// ProductDetails carries the user-supplied fields of a new product row.
type ProductDetails struct {
	Name              string
	Quantity          float64
	Units             string
	Category          string
	Notes             string
	SelectedStore     string
	SelectedPrice     float64
	DatabaseProductID string
}

// AddProduct appends a product row unless an unpurchased row with the same
// trimmed, case-folded name already exists. Purchased rows never block a
// re-add; buying milk again is the normal case. Returns the new product id
// and whether a row was added.
func (s *Service) AddProduct(list *store.Store, details ProductDetails, author identity.Identity) (string, bool, error) {
	if list == nil {
		return "", false, newServiceError(opAddProduct, "missing_store", errMissingListStore)
	}
	name := strings.TrimSpace(details.Name)
	if name == "" {
		return "", false, newServiceError(opAddProduct, "missing_name", errMissingListName)
	}

	if s.hasUnpurchasedNamed(list, name) {
		return "", false, nil
	}

	productID, err := s.ids.NewID()
	if err != nil {
		return "", false, newServiceError(opAddProduct, "id_generation_failed", err)
	}
	quantity := details.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	now := timestamp(s.clock)
	list.Transaction(func() {
		list.SetRow(TableProducts, productID, map[string]any{
			"name":              name,
			"quantity":          quantity,
			"units":             details.Units,
			"isPurchased":       false,
			"category":          details.Category,
			"notes":             details.Notes,
			"selectedStore":     details.SelectedStore,
			"selectedPrice":     details.SelectedPrice,
			"databaseProductId": details.DatabaseProductID,
			"createdBy":         author.UserID,
			"createdAt":         now,
			"updatedAt":         now,
		})
		list.SetValue(ValueUpdatedAt, now)
	})
	return productID, true, nil
}

func (s *Service) hasUnpurchasedNamed(list *store.Store, name string) bool {
	folded := strings.ToLower(name)
	for _, row := range list.GetTable(TableProducts) {
		rowName, _ := row["name"].(string)
		purchased, _ := row["isPurchased"].(bool)
		if !purchased && strings.ToLower(strings.TrimSpace(rowName)) == folded {
			return true
		}
	}
	return false
}

// EditProduct overwrites the given columns of an existing product row.
func (s *Service) EditProduct(list *store.Store, productID string, updates map[string]any) error {
	if list == nil {
		return newServiceError(opEditProduct, "missing_store", errMissingListStore)
	}
	if !list.HasRow(TableProducts, productID) {
		return newServiceError(opEditProduct, "unknown_product", errMissingProduct)
	}
	now := timestamp(s.clock)
	list.Transaction(func() {
		for column, value := range updates {
			list.SetCell(TableProducts, productID, column, value)
		}
		list.SetCell(TableProducts, productID, "updatedAt", now)
		list.SetValue(ValueUpdatedAt, now)
	})
	return nil
}

// TogglePurchased flips a product's isPurchased flag.
func (s *Service) TogglePurchased(list *store.Store, productID string) error {
	if list == nil {
		return newServiceError(opTogglePurchased, "missing_store", errMissingListStore)
	}
	row, ok := list.GetRow(TableProducts, productID)
	if !ok {
		return newServiceError(opTogglePurchased, "unknown_product", errMissingProduct)
	}
	purchased, _ := row["isPurchased"].(bool)
	now := timestamp(s.clock)
	list.Transaction(func() {
		list.SetCell(TableProducts, productID, "isPurchased", !purchased)
		list.SetCell(TableProducts, productID, "updatedAt", now)
		list.SetValue(ValueUpdatedAt, now)
	})
	return nil
}

// RemoveProduct tombstones a product row.
func (s *Service) RemoveProduct(list *store.Store, productID string) {
	if list == nil {
		return
	}
	now := timestamp(s.clock)
	list.Transaction(func() {
		list.DelRow(TableProducts, productID)
		list.SetValue(ValueUpdatedAt, now)
	})
}

// SetStatus moves the list between regular, ongoing and completed.
func (s *Service) SetStatus(list *store.Store, status string) error {
	if list == nil {
		return newServiceError(opSetStatus, "missing_store", errMissingListStore)
	}
	switch status {
	case StatusRegular, StatusOngoing, StatusCompleted:
	default:
		return newServiceError(opSetStatus, "invalid_status", fmt.Errorf("%w: %q", errInvalidStatus, status))
	}
	list.Transaction(func() {
		list.SetValue(ValueStatus, status)
		list.SetValue(ValueUpdatedAt, timestamp(s.clock))
	})
	return nil
}

// CompleteShopping marks the list completed and hands every purchased
// product to the recorder. Recorder failures leave the list untouched so
// the run can be completed again.
func (s *Service) CompleteShopping(list *store.Store, recorder CompletionRecorder) error {
	if list == nil {
		return newServiceError(opCompleteShopping, "missing_store", errMissingListStore)
	}

	var purchased []PurchasedProduct
	for productID, row := range list.GetTable(TableProducts) {
		done, _ := row["isPurchased"].(bool)
		if !done {
			continue
		}
		name, _ := row["name"].(string)
		quantity, _ := row["quantity"].(float64)
		units, _ := row["units"].(string)
		category, _ := row["category"].(string)
		selectedStore, _ := row["selectedStore"].(string)
		selectedPrice, _ := row["selectedPrice"].(float64)
		purchased = append(purchased, PurchasedProduct{
			ProductID:     productID,
			Name:          name,
			Quantity:      quantity,
			Units:         units,
			Category:      category,
			SelectedStore: selectedStore,
			SelectedPrice: selectedPrice,
		})
	}

	if recorder != nil {
		listID, _ := list.GetValue(ValueID).(string)
		listName, _ := list.GetValue(ValueName).(string)
		if err := recorder.RecordCompletion(listID, listName, purchased); err != nil {
			return newServiceError(opCompleteShopping, "record_failed", err)
		}
	}

	now := timestamp(s.clock)
	list.Transaction(func() {
		list.SetValue(ValueStatus, StatusCompleted)
		list.SetValue(ValueCompletedAt, now)
		list.SetValue(ValueUpdatedAt, now)
	})
	return nil
}

// RestoreList resets every product to unpurchased and the status to
// regular in one transaction, so observers see a single state change
// rather than one per product.
func (s *Service) RestoreList(list *store.Store) {
	if list == nil {
		return
	}
	now := timestamp(s.clock)
	list.Transaction(func() {
		for productID := range list.GetTable(TableProducts) {
			list.SetCell(TableProducts, productID, "isPurchased", false)
		}
		list.SetValue(ValueStatus, StatusRegular)
		list.SetValue(ValueCompletedAt, "")
		list.SetValue(ValueUpdatedAt, now)
	})
}
