package pipeline

import (
	"context"

	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/tasks"
	"loadhunt/internal/util"
)

type CustomerStore interface {
	UpsertCustomer(ctx context.Context, c internal.Customer) (bool, error)
}

// customerFromShipment builds the broker as a tenant customer. The broker
// company is the customer name; shipments without one yield nothing.
func customerFromShipment(s internal.ShipmentRecord) (internal.Customer, bool) {
	name := util.Deref(s.BrokerCompany)
	if name == "" {
		return internal.Customer{}, false
	}
	return internal.Customer{
		TenantID:    s.TenantID,
		Name:        name,
		ContactName: s.BrokerName,
		Email:       s.BrokerEmail,
		Phone:       s.BrokerPhone,
		MCNumber:    s.BrokerMC,
		Status:      "active",
	}, true
}

func customerTask(store CustomerStore, c internal.Customer, logger *zap.Logger) tasks.Task {
	return tasks.Task{
		Name: "customer_upsert",
		Run: func(ctx context.Context) error {
			created, err := store.UpsertCustomer(ctx, c)
			if err != nil {
				return err
			}
			if created {
				logger.Info("customer: created", zap.String("tenant_id", c.TenantID), zap.String("customer", c.Name))
			}
			return nil
		},
	}
}
