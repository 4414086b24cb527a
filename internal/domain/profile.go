package domain

// TierFree уровень подписки по умолчанию.
// Поле subscription_tier профиля — денормализованный кеш имени активного
// плана; источником истины остается таблица подписок.
const TierFree = "free"
