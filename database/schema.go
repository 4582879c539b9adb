package database

// DatabaseSchema contains the complete PostgreSQL schema for CivicAid.
// This includes all tables, indexes, and seed rows required for the application.
const DatabaseSchema = `
-- Enable required extensions
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

-- Reviewer accounts with encrypted fields
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    email_hash BYTEA UNIQUE NOT NULL, -- SHA-256 hash for login lookups
    email_encrypted BYTEA NOT NULL, -- Encrypted email for privacy
    password_hash TEXT NOT NULL, -- Argon2id hash
    salt BYTEA NOT NULL,
    mfa_secret_encrypted BYTEA, -- Encrypted TOTP secret
    mfa_enabled BOOLEAN DEFAULT false,
    mfa_backup_codes BYTEA[], -- Argon2 hashes of single-use backup codes
    is_admin BOOLEAN DEFAULT false,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),
    last_login TIMESTAMPTZ,
    failed_attempts INT DEFAULT 0,
    locked_until TIMESTAMPTZ
);

-- Citizen complaints. All PII columns hold XChaCha20-Poly1305 ciphertext.
CREATE TABLE IF NOT EXISTS complaints (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    reference TEXT UNIQUE NOT NULL,
    phone_hash BYTEA NOT NULL, -- SHA-256 of the verified E.164 number
    name_encrypted BYTEA NOT NULL,
    father_name_encrypted BYTEA,
    age INT,
    phone_encrypted BYTEA NOT NULL,
    email_encrypted BYTEA,
    address_encrypted BYTEA,
    aadhaar_encrypted BYTEA,
    aadhaar_photo_path TEXT,
    complaint_type TEXT NOT NULL,
    incident_date TEXT,
    incident_location TEXT NOT NULL,
    description TEXT NOT NULL,
    applicable_laws TEXT,
    police_station TEXT,
    document_path TEXT,
    status TEXT CHECK (status IN ('received', 'under_review', 'forwarded', 'closed')) DEFAULT 'received',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_complaints_phone_hash ON complaints(phone_hash);
CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status, created_at DESC);

-- RTI applications under the Right to Information Act, 2005
CREATE TABLE IF NOT EXISTS rti_requests (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    reference TEXT UNIQUE NOT NULL,
    phone_hash BYTEA NOT NULL,
    name_encrypted BYTEA NOT NULL,
    phone_encrypted BYTEA NOT NULL,
    email_encrypted BYTEA,
    address_encrypted BYTEA,
    aadhaar_encrypted BYTEA,
    department TEXT NOT NULL,
    information_sought TEXT NOT NULL,
    purpose TEXT,
    document_path TEXT,
    status TEXT CHECK (status IN ('received', 'under_review', 'forwarded', 'closed')) DEFAULT 'received',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rti_requests_phone_hash ON rti_requests(phone_hash);
CREATE INDEX IF NOT EXISTS idx_rti_requests_status ON rti_requests(status, created_at DESC);

-- Traffic violation reports
CREATE TABLE IF NOT EXISTS traffic_violations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    reference TEXT UNIQUE NOT NULL,
    phone_hash BYTEA NOT NULL,
    name_encrypted BYTEA NOT NULL,
    phone_encrypted BYTEA NOT NULL,
    vehicle_number TEXT NOT NULL,
    violation_type TEXT NOT NULL,
    location TEXT,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    photo_path TEXT,
    description TEXT,
    document_path TEXT,
    status TEXT CHECK (status IN ('received', 'under_review', 'forwarded', 'closed')) DEFAULT 'received',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_traffic_violations_phone_hash ON traffic_violations(phone_hash);
CREATE INDEX IF NOT EXISTS idx_traffic_violations_status ON traffic_violations(status, created_at DESC);

-- Police stations used for nearest-station lookup
CREATE TABLE IF NOT EXISTS police_stations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name TEXT UNIQUE NOT NULL,
    address TEXT NOT NULL,
    phone TEXT,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL
);

-- Seed Kakinada-area stations; additional rows can be loaded by ops.
INSERT INTO police_stations (name, address, phone, latitude, longitude)
VALUES
    ('Kakinada Town Police Station', 'Main Road, Kakinada, Andhra Pradesh 533001', '0884-2365100', 16.9604, 82.2381),
    ('Kakinada Rural Police Station', 'Sarpavaram Junction, Kakinada 533005', '0884-2376333', 16.9891, 82.2475),
    ('Kakinada Two Town Police Station', 'Jagannaickpur, Kakinada 533002', '0884-2363733', 16.9445, 82.2290),
    ('Sarpavaram Police Station', 'Sarpavaram, Kakinada 533005', '0884-2376455', 17.0010, 82.2290),
    ('Kakinada Traffic Police Station', 'Bhanugudi Junction, Kakinada 533003', '0884-2344100', 16.9661, 82.2468)
ON CONFLICT (name) DO NOTHING;

-- Audit trail for reviewer actions on submissions
CREATE TABLE IF NOT EXISTS audit_log (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID REFERENCES users(id) ON DELETE SET NULL,
    action TEXT NOT NULL,
    resource TEXT,
    metadata JSONB DEFAULT '{}',
    ip_encrypted BYTEA,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at DESC);

-- Runtime settings adjustable without redeploys
CREATE TABLE IF NOT EXISTS app_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`
