package crdb

import "context"

const Schema = `
CREATE TABLE IF NOT EXISTS trips (
	id UUID PRIMARY KEY,
	name STRING NOT NULL,
	owner_id UUID NOT NULL,
	org_id UUID NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	booking_ids UUID[] NOT NULL DEFAULT ARRAY[]::UUID[],
	version INT8 NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	INDEX trips_owner_idx (owner_id)
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	reservation_id STRING NOT NULL UNIQUE,
	trip_id UUID NOT NULL REFERENCES trips (id),
	user_id UUID NOT NULL,
	org_id UUID NOT NULL,
	offer_id STRING NOT NULL,
	total_amount DECIMAL NOT NULL,
	currency STRING NOT NULL,
	status STRING NOT NULL CHECK (status IN ('PENDING_PAYMENT', 'PENDING_APPROVAL', 'PAID', 'CONFIRMED', 'CANCELLED')),
	passengers JSONB NOT NULL,
	trips JSONB NOT NULL,
	price_breakdown JSONB NOT NULL,
	approval_request_id UUID,
	delivery_option STRING NOT NULL DEFAULT '',
	confirmation_number STRING NOT NULL DEFAULT '',
	ticket_url STRING NOT NULL DEFAULT '',
	collection_reference STRING NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	INDEX bookings_trip_idx (trip_id),
	INDEX bookings_user_idx (user_id, offer_id)
);

CREATE TABLE IF NOT EXISTS approval_requests (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	user_id UUID NOT NULL,
	approver_id UUID,
	travel_data JSONB NOT NULL,
	policy_evaluation JSONB NOT NULL,
	status STRING NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
	reason STRING NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ,
	INDEX approvals_org_idx (org_id, created_at DESC)
);

CREATE TABLE IF NOT EXISTS reservation_journal (
	id UUID PRIMARY KEY,
	reservation_id STRING NOT NULL UNIQUE,
	booking_id UUID NOT NULL,
	offer_id STRING NOT NULL,
	trip_id UUID NOT NULL,
	user_id UUID NOT NULL,
	org_id UUID NOT NULL,
	status STRING NOT NULL CHECK (status IN ('RESERVED', 'PERSISTED', 'ORPHANED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	INDEX journal_status_idx (status, created_at)
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type STRING NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type STRING NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status STRING NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key STRING NOT NULL,
	INDEX outbox_status_idx (status, created_at)
);
`

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
