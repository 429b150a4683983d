package sqlinline

const QSelectOAuthCredential = `--sql 4cb68772-ee11-459b-8a8b-aec39a648031
select access_token, refresh_token, scope, expires_at
from oauth_credentials
where user_id = $1::uuid
limit 1;
`

const QUpsertOAuthCredential = `--sql 5c37d6f8-f697-4441-80d9-5435ed3b5eeb
insert into oauth_credentials (user_id, access_token, refresh_token, scope, expires_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::timestamptz, now())
on conflict (user_id) do update set
    access_token = excluded.access_token,
    refresh_token = case when excluded.refresh_token = '' then oauth_credentials.refresh_token else excluded.refresh_token end,
    scope = excluded.scope,
    expires_at = excluded.expires_at,
    updated_at = now();
`

const QDeleteOAuthCredential = `--sql 7980f1de-f37a-4aaf-9646-74d3cf3fae71
delete from oauth_credentials
where user_id = $1::uuid;
`
