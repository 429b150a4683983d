package sqlinline

const QUpsertDesignUser = `--sql 80cdb576-90a5-46e3-981f-45e131f0f3bc
insert into users (id, design_user_id, team_id, created_at, updated_at)
values ($1::uuid, $2::text, nullif($3::text, ''), now(), now())
on conflict (design_user_id) do update set
    team_id = coalesce(excluded.team_id, users.team_id),
    updated_at = now()
returning id;
`

const QSelectUserByID = `--sql ecd7e2cd-589e-49cb-8ab4-7ac9379f4a88
select id, design_user_id, coalesce(team_id, '') as team_id, created_at
from users
where id = $1::uuid
limit 1;
`
