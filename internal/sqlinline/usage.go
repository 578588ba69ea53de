package sqlinline

const QInsertUsageEvent = `--sql 276048a6-21f6-4a98-ad03-437d25032fd6
insert into usage_events(id, request_id, event_type, provider, success, latency_ms, locale, country, created_at, properties)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::boolean, $5::int, $6::text, $7::text, now(), coalesce($8::jsonb, '{}'::jsonb));
`

const QUsageStats24h = `--sql 78de6306-aead-40d8-9594-ef3a6eaf933a
select event_type,
       count(*) filter (where success) as succeeded,
       count(*) filter (where not success) as failed
from usage_events
where created_at > now() - interval '24 hours'
group by event_type
order by event_type;
`
