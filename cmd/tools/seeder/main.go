package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds a development database with a small food hub: two suppliers, a
// distributor shopfront, an open order cycle, fees and tag rules. Safe to
// run repeatedly; every insert upserts on a deterministic id.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	users := seedUsers(ctx, pool)
	enterprises := seedEnterprises(ctx, pool, users)
	seedCustomers(ctx, pool, users, enterprises)
	seedMethods(ctx, pool, enterprises)
	fees := seedFees(ctx, pool, enterprises)
	seedTagRules(ctx, pool, enterprises)
	products := seedProducts(ctx, pool, enterprises)
	seedOrderCycle(ctx, pool, enterprises, products, fees)

	log.Println("Seeding completed successfully!")
}

// sid derives a stable UUID from a seed name so reruns upsert in place.
func sid(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("seed:"+name))
}

func mustHash(password string) string {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	return hash
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) map[string]uuid.UUID {
	users := []struct {
		Key   string
		Name  string
		Email string
		Roles []string
	}{
		{"admin", "Platform Admin", "admin@market.test", []string{"admin"}},
		{"greenacres", "Mary Fields", "mary@greenacres.test", []string{"shopper", "enterprise"}},
		{"riverbend", "Tom Weir", "tom@riverbend.test", []string{"shopper", "enterprise"}},
		{"freshhub", "Ana Costa", "ana@freshhub.test", []string{"shopper", "enterprise"}},
		{"shopper-alice", "Alice Nguyen", "alice@example.test", []string{"shopper"}},
		{"shopper-bob", "Bob Tanaka", "bob@example.test", []string{"shopper"}},
	}

	out := make(map[string]uuid.UUID, len(users))
	hash := mustHash("password123")
	for _, u := range users {
		id := sid("user/" + u.Key)
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, roles)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, roles = EXCLUDED.roles`,
			id, u.Name, u.Email, hash, u.Roles)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
		out[u.Key] = id
	}
	log.Printf("Seeded %d users", len(users))
	return out
}

func seedEnterprises(ctx context.Context, pool *pgxpool.Pool, users map[string]uuid.UUID) map[string]uuid.UUID {
	enterprises := []struct {
		Key           string
		Name          string
		Owner         string
		IsDistributor bool
		Tags          []string
	}{
		{"greenacres", "Green Acres Farm", "greenacres", false, []string{"organic"}},
		{"riverbend", "Riverbend Dairy", "riverbend", false, nil},
		{"freshhub", "Fresh Hub", "freshhub", true, []string{"hub"}},
	}

	out := make(map[string]uuid.UUID, len(enterprises))
	for _, e := range enterprises {
		id := sid("enterprise/" + e.Key)
		_, err := pool.Exec(ctx, `
			INSERT INTO enterprises (id, name, owner_id, is_distributor, tags)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_distributor = EXCLUDED.is_distributor, tags = EXCLUDED.tags`,
			id, e.Name, users[e.Owner], e.IsDistributor, tagsOrEmpty(e.Tags))
		if err != nil {
			log.Fatalf("Failed to seed enterprise %s: %v", e.Name, err)
		}
		out[e.Key] = id

		_, err = pool.Exec(ctx, `
			INSERT INTO enterprise_managers (user_id, enterprise_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, users[e.Owner], id)
		if err != nil {
			log.Fatalf("Failed to seed manager for %s: %v", e.Name, err)
		}
	}
	log.Printf("Seeded %d enterprises", len(enterprises))
	return out
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, users, enterprises map[string]uuid.UUID) {
	customers := []struct {
		User       string
		Enterprise string
		Email      string
		Tags       []string
	}{
		{"shopper-alice", "freshhub", "alice@example.test", []string{"wholesale", "local"}},
		{"shopper-bob", "freshhub", "bob@example.test", nil},
	}

	for _, c := range customers {
		_, err := pool.Exec(ctx, `
			INSERT INTO customers (id, user_id, enterprise_id, email, tags)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, enterprise_id)
			DO UPDATE SET email = EXCLUDED.email, tags = EXCLUDED.tags`,
			sid("customer/"+c.User+"/"+c.Enterprise), users[c.User], enterprises[c.Enterprise], c.Email, tagsOrEmpty(c.Tags))
		if err != nil {
			log.Fatalf("Failed to seed customer %s: %v", c.Email, err)
		}
	}
	log.Printf("Seeded %d customers", len(customers))
}

func seedMethods(ctx context.Context, pool *pgxpool.Pool, enterprises map[string]uuid.UUID) {
	hub := enterprises["freshhub"]

	shipping := []struct {
		Key                string
		Name               string
		RequireShipAddress bool
		Tags               []string
	}{
		{"pickup", "Hub Pickup", false, []string{"local"}},
		{"delivery", "Home Delivery", true, nil},
	}
	for _, m := range shipping {
		_, err := pool.Exec(ctx, `
			INSERT INTO shipping_methods (id, enterprise_id, name, require_ship_address, tags)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, require_ship_address = EXCLUDED.require_ship_address, tags = EXCLUDED.tags`,
			sid("shipping/"+m.Key), hub, m.Name, m.RequireShipAddress, tagsOrEmpty(m.Tags))
		if err != nil {
			log.Fatalf("Failed to seed shipping method %s: %v", m.Name, err)
		}
	}

	payment := []struct {
		Key    string
		Name   string
		Active bool
		Tags   []string
	}{
		{"card", "Card", true, nil},
		{"invoice", "Pay by Invoice", true, []string{"wholesale"}},
		{"cash", "Cash on Pickup", false, nil},
	}
	for _, m := range payment {
		_, err := pool.Exec(ctx, `
			INSERT INTO payment_methods (id, enterprise_id, name, active, tags)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active, tags = EXCLUDED.tags`,
			sid("payment/"+m.Key), hub, m.Name, m.Active, tagsOrEmpty(m.Tags))
		if err != nil {
			log.Fatalf("Failed to seed payment method %s: %v", m.Name, err)
		}
	}
	log.Printf("Seeded %d shipping and %d payment methods", len(shipping), len(payment))
}

func seedFees(ctx context.Context, pool *pgxpool.Pool, enterprises map[string]uuid.UUID) map[string]uuid.UUID {
	fees := []struct {
		Key            string
		Enterprise     string
		Name           string
		FeeType        string
		IncludedTaxBps int32
		Kind           string
		Amount         int64
		PercentBps     int32
	}{
		{"hub-packing", "freshhub", "Packing", "packing", 0, "flat_per_item", 50, 0},
		{"hub-admin", "freshhub", "Admin", "admin", 1000, "percent", 0, 500},
		{"farm-transport", "greenacres", "Transport", "transport", 0, "flat_rate", 300, 0},
		{"dairy-sales", "riverbend", "Sales", "sales", 0, "percent", 0, 250},
	}

	out := make(map[string]uuid.UUID, len(fees))
	for _, f := range fees {
		id := sid("fee/" + f.Key)
		_, err := pool.Exec(ctx, `
			INSERT INTO enterprise_fees (id, enterprise_id, name, fee_type, included_tax_rate_bps, calculator_kind, amount, percent_bps)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, fee_type = EXCLUDED.fee_type,
				included_tax_rate_bps = EXCLUDED.included_tax_rate_bps, calculator_kind = EXCLUDED.calculator_kind,
				amount = EXCLUDED.amount, percent_bps = EXCLUDED.percent_bps`,
			id, enterprises[f.Enterprise], f.Name, f.FeeType, f.IncludedTaxBps, f.Kind, f.Amount, f.PercentBps)
		if err != nil {
			log.Fatalf("Failed to seed fee %s: %v", f.Name, err)
		}
		out[f.Key] = id
	}
	log.Printf("Seeded %d enterprise fees", len(fees))
	return out
}

func seedTagRules(ctx context.Context, pool *pgxpool.Pool, enterprises map[string]uuid.UUID) {
	hub := enterprises["freshhub"]

	rules := []struct {
		Key          string
		Kind         string
		IsDefault    bool
		Priority     int32
		CustomerTags []string
		Preferred    []string
		Visibility   string
	}{
		// Invoice payment only for wholesale customers.
		{"pay-default-hide-invoice", "filter_payment_methods", true, 10, nil, []string{"wholesale"}, "hidden"},
		{"pay-wholesale-show-invoice", "filter_payment_methods", false, 10, []string{"wholesale"}, []string{"wholesale"}, "visible"},
		// Local customers see pickup.
		{"ship-local-show-pickup", "filter_shipping_methods", false, 10, []string{"local"}, []string{"local"}, "visible"},
		{"ship-default-hide-pickup", "filter_shipping_methods", true, 10, nil, []string{"local"}, "hidden"},
		// Members-only cycles stay off the public shopfront.
		{"cycle-default-hide-members", "filter_order_cycles", true, 10, nil, []string{"members"}, "hidden"},
		{"product-default-hide-wholesale", "filter_products", true, 10, nil, []string{"wholesale-only"}, "hidden"},
	}

	for _, r := range rules {
		_, err := pool.Exec(ctx, `
			INSERT INTO tag_rules (id, enterprise_id, kind, is_default, priority, customer_tags, preferred_tags, matched_visibility)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, is_default = EXCLUDED.is_default,
				priority = EXCLUDED.priority, customer_tags = EXCLUDED.customer_tags,
				preferred_tags = EXCLUDED.preferred_tags, matched_visibility = EXCLUDED.matched_visibility`,
			sid("tagrule/"+r.Key), hub, r.Kind, r.IsDefault, r.Priority,
			tagsOrEmpty(r.CustomerTags), tagsOrEmpty(r.Preferred), r.Visibility)
		if err != nil {
			log.Fatalf("Failed to seed tag rule %s: %v", r.Key, err)
		}
	}
	log.Printf("Seeded %d tag rules", len(rules))
}

type seededProduct struct {
	ID       uuid.UUID
	Variants []uuid.UUID
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, enterprises map[string]uuid.UUID) map[string]seededProduct {
	products := []struct {
		Key      string
		Supplier string
		Name     string
		Slug     string
		Desc     string
		Tags     []string
		Variants []struct {
			Key    string
			SKU    string
			Name   string
			Unit   string
			Price  int64
			OnHand int32
		}
	}{
		{
			Key: "carrots", Supplier: "greenacres", Name: "Carrots", Slug: "carrots",
			Desc: "Freshly dug heirloom carrots.", Tags: []string{"organic", "vegetable"},
			Variants: []struct {
				Key    string
				SKU    string
				Name   string
				Unit   string
				Price  int64
				OnHand int32
			}{
				{"carrots-1kg", "CAR-1KG", "1 kg bag", "kg", 450, 80},
				{"carrots-5kg", "CAR-5KG", "5 kg sack", "kg", 1900, 25},
			},
		},
		{
			Key: "milk", Supplier: "riverbend", Name: "Whole Milk", Slug: "whole-milk",
			Desc: "Pasteurised whole milk, returnable bottles.", Tags: []string{"dairy"},
			Variants: []struct {
				Key    string
				SKU    string
				Name   string
				Unit   string
				Price  int64
				OnHand int32
			}{
				{"milk-1l", "MLK-1L", "1 L bottle", "l", 320, 120},
			},
		},
		{
			Key: "eggs", Supplier: "greenacres", Name: "Free Range Eggs", Slug: "free-range-eggs",
			Desc: "Dozen free range eggs.", Tags: []string{"organic"},
			Variants: []struct {
				Key    string
				SKU    string
				Name   string
				Unit   string
				Price  int64
				OnHand int32
			}{
				{"eggs-dozen", "EGG-12", "Dozen", "dozen", 750, 40},
			},
		},
	}

	out := make(map[string]seededProduct, len(products))
	variantCount := 0
	for _, p := range products {
		id := sid("product/" + p.Key)
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, supplier_id, name, slug, description, tags)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, tags = EXCLUDED.tags`,
			id, enterprises[p.Supplier], p.Name, p.Slug, p.Desc, tagsOrEmpty(p.Tags))
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Name, err)
		}

		sp := seededProduct{ID: id}
		for _, v := range p.Variants {
			vid := sid("variant/" + v.Key)
			_, err := pool.Exec(ctx, `
				INSERT INTO product_variants (id, product_id, sku, name, unit, price, on_hand)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET sku = EXCLUDED.sku, name = EXCLUDED.name,
					unit = EXCLUDED.unit, price = EXCLUDED.price, on_hand = EXCLUDED.on_hand`,
				vid, id, v.SKU, v.Name, v.Unit, v.Price, v.OnHand)
			if err != nil {
				log.Fatalf("Failed to seed variant %s: %v", v.SKU, err)
			}
			sp.Variants = append(sp.Variants, vid)
			variantCount++
		}
		out[p.Key] = sp
	}
	log.Printf("Seeded %d products with %d variants", len(products), variantCount)
	return out
}

func seedOrderCycle(ctx context.Context, pool *pgxpool.Pool, enterprises map[string]uuid.UUID, products map[string]seededProduct, fees map[string]uuid.UUID) {
	hub := enterprises["freshhub"]
	cycleID := sid("cycle/weekly")

	now := time.Now()
	_, err := pool.Exec(ctx, `
		INSERT INTO order_cycles (id, name, coordinator_id, orders_open_at, orders_close_at, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, orders_open_at = EXCLUDED.orders_open_at,
			orders_close_at = EXCLUDED.orders_close_at, tags = EXCLUDED.tags`,
		cycleID, "Weekly Box", hub, now.Add(-24*time.Hour), now.Add(6*24*time.Hour), tagsOrEmpty(nil))
	if err != nil {
		log.Fatalf("Failed to seed order cycle: %v", err)
	}

	exchanges := []struct {
		Key       string
		Sender    string
		Receiver  string
		Direction string
		Fees      []string
		Products  []string
	}{
		{"in-greenacres", "greenacres", "freshhub", "incoming", []string{"farm-transport"}, []string{"carrots", "eggs"}},
		{"in-riverbend", "riverbend", "freshhub", "incoming", []string{"dairy-sales"}, []string{"milk"}},
		{"out-freshhub", "freshhub", "freshhub", "outgoing", []string{"hub-packing"}, []string{"carrots", "eggs", "milk"}},
	}

	for _, ex := range exchanges {
		exID := sid("exchange/" + ex.Key)
		_, err := pool.Exec(ctx, `
			INSERT INTO exchanges (id, order_cycle_id, sender_id, receiver_id, direction)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET sender_id = EXCLUDED.sender_id, receiver_id = EXCLUDED.receiver_id, direction = EXCLUDED.direction`,
			exID, cycleID, enterprises[ex.Sender], enterprises[ex.Receiver], ex.Direction)
		if err != nil {
			log.Fatalf("Failed to seed exchange %s: %v", ex.Key, err)
		}

		for _, pKey := range ex.Products {
			for _, vid := range products[pKey].Variants {
				_, err := pool.Exec(ctx, `
					INSERT INTO exchange_variants (exchange_id, variant_id)
					VALUES ($1, $2) ON CONFLICT DO NOTHING`, exID, vid)
				if err != nil {
					log.Fatalf("Failed to seed exchange variant: %v", err)
				}
			}
		}

		for i, feeKey := range ex.Fees {
			_, err := pool.Exec(ctx, `
				INSERT INTO exchange_fees (exchange_id, enterprise_fee_id, position)
				VALUES ($1, $2, $3)
				ON CONFLICT (exchange_id, enterprise_fee_id) DO UPDATE SET position = EXCLUDED.position`,
				exID, fees[feeKey], i)
			if err != nil {
				log.Fatalf("Failed to seed exchange fee %s: %v", feeKey, err)
			}
		}
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO coordinator_fees (order_cycle_id, enterprise_fee_id, position)
		VALUES ($1, $2, 0)
		ON CONFLICT (order_cycle_id, enterprise_fee_id) DO UPDATE SET position = EXCLUDED.position`,
		cycleID, fees["hub-admin"])
	if err != nil {
		log.Fatalf("Failed to seed coordinator fee: %v", err)
	}

	// Eggs also sell outside the cycle through a direct distribution link.
	_, err = pool.Exec(ctx, `
		INSERT INTO product_distributions (id, product_id, distributor_id, enterprise_fee_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, distributor_id) DO UPDATE SET enterprise_fee_id = EXCLUDED.enterprise_fee_id`,
		sid("distribution/eggs-freshhub"), products["eggs"].ID, hub, fees["hub-packing"])
	if err != nil {
		log.Fatalf("Failed to seed product distribution: %v", err)
	}

	log.Printf("Seeded order cycle with %d exchanges", len(exchanges))
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
