package features

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var shipTo = orders.Address{Name: "A", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

type storefrontContext struct {
	store   *memstore.Store
	carts   *cart.Service
	orders  *orders.Service
	order   *orders.Order
	summary orders.Summary
	err     error
	results []error
}

func (c *storefrontContext) reset() {
	c.store = memstore.New()
	c.carts = cart.NewService(c.store, c.store, nil, nil)
	c.orders = orders.NewService(c.store, c.store, c.store, orders.DefaultPricing(), nil, nil)
	c.order = nil
	c.summary = orders.Summary{}
	c.err = nil
	c.results = nil
}

func (c *storefrontContext) productPricedWithUnitsOnHand(id, price string, units int) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.store.SeedProduct(catalog.Product{ID: id, Name: id, Price: p, InventoryQuantity: units})
	return nil
}

func (c *storefrontContext) userAddsUnitsToCart(user string, qty int, product string) error {
	_, c.err = c.carts.AddItem(context.Background(), user, product, qty, nil)
	return nil
}

func (c *storefrontContext) theAddSucceeds() error {
	return c.err
}

func (c *storefrontContext) userSeesUnitsAvailable(user string, want int, product string) error {
	a, err := c.carts.Ledger.Available(context.Background(), product, user, "")
	if err != nil {
		return err
	}
	if a.Remaining() != want {
		return fmt.Errorf("expected %d available, got %d", want, a.Remaining())
	}
	return nil
}

func (c *storefrontContext) theAddFailsWithInsufficientStock(available, reserved int) error {
	var se *apperr.InsufficientStockError
	if !errors.As(c.err, &se) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	if se.Available != available || se.ReservedByOthers != reserved {
		return fmt.Errorf("expected %d available and %d reserved, got %d and %d",
			available, reserved, se.Available, se.ReservedByOthers)
	}
	return nil
}

func (c *storefrontContext) userPlacesAnOrder(user string) error {
	o, err := c.orders.CreateOrder(context.Background(), user, orders.CreateInput{ShippingAddress: shipTo})
	if err != nil {
		return err
	}
	c.order = o
	return nil
}

func (c *storefrontContext) theOrderIs(status string) error {
	if c.order == nil {
		return errors.New("no order")
	}
	if string(c.order.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, c.order.Status)
	}
	return nil
}

func (c *storefrontContext) productHasUnitsOnHand(id string, want int) error {
	p, err := c.store.GetProduct(context.Background(), id)
	if err != nil {
		return err
	}
	if p.InventoryQuantity != want {
		return fmt.Errorf("expected %d on hand, got %d", want, p.InventoryQuantity)
	}
	return nil
}

func (c *storefrontContext) theCartOfUserHoldsItems(user string, want int) error {
	sum, err := c.carts.Summary(context.Background(), user)
	if err != nil {
		return err
	}
	if sum.TotalItems != want {
		return fmt.Errorf("expected %d items, got %d", want, sum.TotalItems)
	}
	return nil
}

func (c *storefrontContext) userCancelsTheOrder(user string) error {
	o, err := c.orders.Cancel(context.Background(), orders.Actor{UserID: user}, c.order.ID, "")
	c.err = err
	if err == nil {
		c.order = o
	}
	return nil
}

func (c *storefrontContext) theCancellationIsRejected() error {
	if !errors.Is(c.err, apperr.ErrInvalidStateTransition) {
		return fmt.Errorf("expected invalid state transition, got %v", c.err)
	}
	return nil
}

func (c *storefrontContext) anOrderSubtotalIsPriced(subtotal string) error {
	d, err := decimal.NewFromString(subtotal)
	if err != nil {
		return err
	}
	c.summary = orders.DefaultPricing().Summarize(d, decimal.Zero)
	return nil
}

func equalAmount(field string, got decimal.Decimal, want string) error {
	d, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(d) {
		return fmt.Errorf("expected %s %s, got %s", field, want, got)
	}
	return nil
}

func (c *storefrontContext) shippingIs(want string) error {
	return equalAmount("shipping", c.summary.Shipping, want)
}

func (c *storefrontContext) taxIs(want string) error {
	return equalAmount("tax", c.summary.Tax, want)
}

// Seeds carts directly: the second user would fail the cart-time check,
// but two requests can both pass it before either order is placed.
func (c *storefrontContext) usersBothHoldUnitsInCarts(a, b string, qty int, product string) error {
	p, err := c.store.GetProduct(context.Background(), product)
	if err != nil {
		return err
	}
	for _, u := range []string{a, b} {
		err := c.store.SaveCart(context.Background(), &cart.Cart{
			ID: "cart-" + u, UserID: u,
			Lines: []cart.Line{{ProductID: product, Quantity: qty, Price: p.Price}},
		})
		if err != nil {
			return err
		}
	}
	c.results = nil
	return nil
}

func (c *storefrontContext) bothUsersPlaceOrders() error {
	users := []string{"A", "B"}
	c.results = make([]error, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c.results[i] = c.orders.CreateOrder(context.Background(), u, orders.CreateInput{ShippingAddress: shipTo})
		}()
	}
	wg.Wait()
	return nil
}

func (c *storefrontContext) exactlyOrdersArePlaced(want int) error {
	n := 0
	for _, err := range c.results {
		if err == nil {
			n++
		}
	}
	if n != want {
		return fmt.Errorf("expected %d orders, got %d (%v)", want, n, c.results)
	}
	return nil
}

func (c *storefrontContext) theOtherOrderFailsWithInsufficientStock() error {
	for _, err := range c.results {
		if err != nil && !errors.Is(err, apperr.ErrInsufficientStock) {
			return fmt.Errorf("expected insufficient stock, got %v", err)
		}
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	sc := &storefrontContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		sc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^product "([^"]*)" priced at ([\d.]+) with (\d+) units on hand$`, sc.productPricedWithUnitsOnHand)
	ctx.Step(`^users "([^"]*)" and "([^"]*)" both hold (\d+) units of "([^"]*)" in their carts$`, sc.usersBothHoldUnitsInCarts)

	// When steps
	ctx.Step(`^user "([^"]*)" adds (\d+) units of "([^"]*)" to their cart$`, sc.userAddsUnitsToCart)
	ctx.Step(`^user "([^"]*)" places an order$`, sc.userPlacesAnOrder)
	ctx.Step(`^user "([^"]*)" cancels the order$`, sc.userCancelsTheOrder)
	ctx.Step(`^an order subtotal of ([\d.]+) is priced$`, sc.anOrderSubtotalIsPriced)
	ctx.Step(`^both users place orders at the same time$`, sc.bothUsersPlaceOrders)

	// Then steps
	ctx.Step(`^the add succeeds$`, sc.theAddSucceeds)
	ctx.Step(`^user "([^"]*)" sees (\d+) units of "([^"]*)" available$`, sc.userSeesUnitsAvailable)
	ctx.Step(`^the add fails with insufficient stock reporting (\d+) available and (\d+) reserved by others$`, sc.theAddFailsWithInsufficientStock)
	ctx.Step(`^the order is "([^"]*)"$`, sc.theOrderIs)
	ctx.Step(`^product "([^"]*)" has (\d+) units on hand$`, sc.productHasUnitsOnHand)
	ctx.Step(`^the cart of user "([^"]*)" holds (\d+) items$`, sc.theCartOfUserHoldsItems)
	ctx.Step(`^the cancellation is rejected as an invalid state transition$`, sc.theCancellationIsRejected)
	ctx.Step(`^shipping is ([\d.]+)$`, sc.shippingIs)
	ctx.Step(`^tax is ([\d.]+)$`, sc.taxIs)
	ctx.Step(`^exactly (\d+) order is placed$`, sc.exactlyOrdersArePlaced)
	ctx.Step(`^the other order fails with insufficient stock$`, sc.theOtherOrderFailsWithInsufficientStock)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"storefront.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
