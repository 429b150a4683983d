package sqlinline

const QInsertExportRequest = `--sql c0e42f3b-e77b-4acb-89bb-58e9d21f01ca
insert into export_requests (id, user_id, design_id, variants, format, status, mode, started_at, created_at, updated_at)
values (
    $1::uuid,
    $2::uuid,
    $3::text,
    $4::jsonb,
    $5::text,
    $6::text,
    $7::text,
    case when $6::text = 'running' then now() end,
    now(),
    now()
)
returning created_at;
`

const QClaimExportRequest = `--sql 85dbd8b7-d18c-45e1-866c-5058c495e12a
with next_request as (
    select id
    from export_requests
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update export_requests
    set status = 'running', started_at = now(), updated_at = now()
    where id in (select id from next_request)
    returning id, user_id, design_id, variants, format, created_at
)
select * from updated;
`

const QCompleteExportRequest = `--sql 8ddd35c9-57d1-41f8-8008-b86851b2b4e8
update export_requests
set status = $2::text,
    result = $3::jsonb,
    error = nullif($4::text, ''),
    finished_at = now(),
    updated_at = now()
where id = $1::uuid;
`

const QSelectExportRequest = `--sql a68ce71c-25df-4d1c-9932-8fe7d1564ef1
select id, design_id, variants, format, status, result, coalesce(error, '') as error, created_at, finished_at
from export_requests
where id = $1::uuid and user_id = $2::uuid
limit 1;
`

const QRequeueStaleExportRequests = `--sql e046ecab-0dcd-4f93-8aa3-c17f5baf5c9e
update export_requests
set status = 'queued', started_at = null, updated_at = now()
where status = 'running'
  and mode = 'async'
  and started_at < now() - make_interval(secs => $1::int);
`
