package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS agents (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS data_models (
				id TEXT PRIMARY KEY,
				agent_id TEXT NOT NULL REFERENCES agents(id),
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				schema JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_data_models_agent ON data_models(agent_id);

			CREATE TABLE IF NOT EXISTS actions (
				id TEXT PRIMARY KEY,
				agent_id TEXT NOT NULL REFERENCES agents(id),
				name TEXT NOT NULL,
				type TEXT NOT NULL,
				configuration JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_actions_agent ON actions(agent_id);

			CREATE TABLE IF NOT EXISTS records (
				id TEXT PRIMARY KEY,
				model_id TEXT NOT NULL REFERENCES data_models(id),
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_records_model ON records(model_id);

			CREATE TABLE IF NOT EXISTS schedules (
				id TEXT PRIMARY KEY,
				agent_id TEXT NOT NULL REFERENCES agents(id),
				name TEXT NOT NULL,
				mode TEXT NOT NULL,
				interval_hours DOUBLE PRECISION,
				status TEXT NOT NULL DEFAULT 'active',
				last_run_at TIMESTAMP WITH TIME ZONE,
				next_run_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_schedules_agent ON schedules(agent_id);
			CREATE INDEX IF NOT EXISTS idx_schedules_status_mode ON schedules(status, mode);

			CREATE TABLE IF NOT EXISTS schedule_steps (
				id TEXT PRIMARY KEY,
				schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
				step_order INTEGER NOT NULL,
				model_id TEXT,
				model_name TEXT,
				action_id TEXT,
				action_name TEXT,
				query JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_schedule_steps_schedule ON schedule_steps(schedule_id);
		`,
	}
}
