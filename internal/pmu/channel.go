// Package pmu — входные снимки (snapshot) и выходные записи PMU: каналы, статус-слово, сериализация.
package pmu

import "fmt"

// Channel — имя канала измерения (три фазы напряжения и три фазы тока)
type Channel string

const (
	V1 Channel = "V1"
	V2 Channel = "V2"
	V3 Channel = "V3"
	I1 Channel = "I1"
	I2 Channel = "I2"
	I3 Channel = "I3"
)

// Channels — все известные каналы в каноническом порядке
var Channels = []Channel{V1, V2, V3, I1, I2, I3}

// ParseChannel проверяет имя канала; неизвестное имя — ошибка конфигурации.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown channel %q", ErrConfiguration, s)
}

// ParseChannels разбирает упорядоченный список каналов; дубликаты запрещены.
func ParseChannels(names []string) ([]Channel, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty channel list", ErrConfiguration)
	}
	seen := make(map[Channel]struct{}, len(names))
	out := make([]Channel, 0, len(names))
	for _, n := range names {
		c, err := ParseChannel(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %q", ErrConfiguration, n)
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
