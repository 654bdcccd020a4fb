package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL UNIQUE,
    username VARCHAR(255),
    first_name VARCHAR(255),
    language VARCHAR(8) NOT NULL DEFAULT 'unset',
    plan VARCHAR(16) NOT NULL DEFAULT 'free',
    is_banned TINYINT(1) NOT NULL DEFAULT 0,
    month_key VARCHAR(7) NOT NULL DEFAULT '1970-01',
    monthly_requests_used INT NOT NULL DEFAULT 0,
    monthly_tokens_used INT NOT NULL DEFAULT 0,
    monthly_images_used INT NOT NULL DEFAULT 0,
    monthly_photo_analyses_used INT NOT NULL DEFAULT 0,
    monthly_long_texts_used INT NOT NULL DEFAULT 0,
    day_key VARCHAR(10) NOT NULL DEFAULT '1970-01-01',
    daily_requests_used INT NOT NULL DEFAULT 0,
    daily_images_used INT NOT NULL DEFAULT 0,
    daily_photo_analyses_used INT NOT NULL DEFAULT 0,
    daily_long_texts_used INT NOT NULL DEFAULT 0,
    bonus_image_credits INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS query_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL,
    action VARCHAR(64) NOT NULL,
    plan VARCHAR(16) NOT NULL,
    prompt_text TEXT NOT NULL,
    response_text TEXT,
    input_tokens INT NOT NULL DEFAULT 0,
    output_tokens INT NOT NULL DEFAULT 0,
    total_tokens INT NOT NULL DEFAULT 0,
    status VARCHAR(32) NOT NULL DEFAULT 'ok',
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_query_logs_telegram_id (telegram_id)
);
`
