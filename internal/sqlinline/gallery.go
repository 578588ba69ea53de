package sqlinline

const QInsertGalleryEntry = `--sql c14fa900-612e-44aa-a8b3-b3349465037f
insert into gallery_entries(id, video_url, thumbnail_ref, script, created_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::timestamptz)
on conflict (id) do nothing;
`

const QListGalleryEntries = `--sql bfc30757-acc5-4f35-b9e1-3f93e4c23ad5
select id, video_url, thumbnail_ref, script, created_at
from gallery_entries
order by created_at desc
limit $1::int;
`
