package sqlinline

// QEnsureSchema is idempotent and runs on api and worker startup. It must be
// executed without arguments so the statements go through the simple protocol.
const QEnsureSchema = `--sql 8d43c501-829c-4982-91f2-e8652f5aff92
create table if not exists users (
    id uuid primary key,
    design_user_id text not null unique,
    team_id text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists oauth_credentials (
    user_id uuid primary key references users(id) on delete cascade,
    access_token text not null,
    refresh_token text not null default '',
    scope text not null default '',
    expires_at timestamptz,
    updated_at timestamptz not null default now()
);

create table if not exists export_requests (
    id uuid primary key,
    user_id uuid not null references users(id) on delete cascade,
    design_id text not null,
    variants jsonb not null,
    format text not null,
    status text not null default 'queued',
    mode text not null default 'async',
    result jsonb,
    error text,
    created_at timestamptz not null default now(),
    started_at timestamptz,
    finished_at timestamptz,
    updated_at timestamptz not null default now()
);

alter table export_requests add column if not exists mode text not null default 'async';

create index if not exists export_requests_queue_idx
    on export_requests (created_at)
    where status = 'queued';
`
