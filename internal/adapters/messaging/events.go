package messaging

// KafkaEvent тип события в топиках публикации
type KafkaEvent = string

const (
	ListingPublishCompletedEvent KafkaEvent = "listing.publish.completed"
	ListingPublishFailedEvent    KafkaEvent = "listing.publish.failed"
	PublishJobsArchivedEvent     KafkaEvent = "listing.publish.jobs_archived"
)

// KafkaCommand тип команды, принимаемой воркером из топика команд
type KafkaCommand = string

const (
	PublishListingCommand  KafkaCommand = "publish_listing"
	RetryFailedJobsCommand KafkaCommand = "retry_failed_jobs"
	CleanJobsCommand       KafkaCommand = "clean_jobs"
)
